package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type section int

const (
	secNone section = iota
	secReqNodes
	secReqEdges
	secReqArcs
	secEdges
	secArcs
)

// headerKeys maps normalized header labels, English and Portuguese, to the
// field they set.
var headerKeys = map[string]string{
	"name":                 "name",
	"nome":                 "name",
	"optimal value":        "optimal",
	"valor ótimo":          "optimal",
	"vehicles":             "vehicles",
	"veículos":             "vehicles",
	"capacity":             "capacity",
	"capacidade":           "capacity",
	"depot node":           "depot",
	"depot":                "depot",
	"depósito":             "depot",
	"nodes":                "nodes",
	"nós":                  "nodes",
	"edges":                "edges",
	"arestas":              "edges",
	"arcs":                 "arcs",
	"arcos":                "arcs",
	"required n":           "reqNodes",
	"nós obrigatórios":     "reqNodes",
	"required e":           "reqEdges",
	"arestas obrigatórias": "reqEdges",
	"required a":           "reqArcs",
	"arcos obrigatórios":   "reqArcs",
}

// Header carries the counts the instance declares about itself. They are
// informative; the loaded rows are authoritative.
type Header struct {
	Edges    int
	Arcs     int
	ReqNodes int
	ReqEdges int
	ReqArcs  int
}

// ParseFile loads an instance file. The graph name defaults to the file
// base name without extension.
func ParseFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	g, _, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

// Parse reads the CARP text format and validates the result.
func Parse(r io.Reader) (*Graph, Header, error) {
	g := &Graph{}
	var hdr Header
	sec := secNone
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "ReN."):
			sec = secReqNodes
			continue
		case strings.HasPrefix(line, "ReE."):
			sec = secReqEdges
			continue
		case strings.HasPrefix(line, "ReA."):
			sec = secReqArcs
			continue
		case strings.HasPrefix(line, "EDGE"):
			sec = secEdges
			continue
		case strings.HasPrefix(line, "ARC"):
			sec = secArcs
			continue
		case strings.HasPrefix(line, "the data is based on"), strings.HasPrefix(line, "END"):
			continue
		}
		if sec == secNone {
			if err := parseHeader(g, &hdr, line, lineNo); err != nil {
				return nil, hdr, err
			}
			continue
		}
		if err := parseRow(g, sec, line, lineNo); err != nil {
			return nil, hdr, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, hdr, err
	}
	if g.Depot == 0 {
		g.Depot = DefaultDepot
	}
	if err := g.Validate(); err != nil {
		return nil, hdr, err
	}
	return g, hdr, nil
}

func parseHeader(g *Graph, hdr *Header, line string, lineNo int) error {
	i := strings.Index(line, ":")
	if i < 0 {
		return nil
	}
	key := strings.ToLower(strings.TrimSpace(strings.TrimLeft(line[:i], "#")))
	val := strings.TrimSpace(line[i+1:])
	field, ok := headerKeys[key]
	if !ok {
		return nil
	}
	if field == "name" {
		g.Name = val
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: %q: %w", lineNo, line, ErrSyntax)
	}
	switch field {
	case "optimal":
		g.OptimalValue = n
	case "vehicles":
		g.Vehicles = int(n)
	case "capacity":
		g.Capacity = n
	case "depot":
		g.Depot = int(n)
	case "nodes":
		g.NumVertices = int(n)
	case "edges":
		hdr.Edges = int(n)
	case "arcs":
		hdr.Arcs = int(n)
	case "reqNodes":
		hdr.ReqNodes = int(n)
	case "reqEdges":
		hdr.ReqEdges = int(n)
	case "reqArcs":
		hdr.ReqArcs = int(n)
	}
	return nil
}

func parseRow(g *Graph, sec section, line string, lineNo int) error {
	parts := strings.Fields(line)
	want := map[section]int{secReqNodes: 3, secReqEdges: 6, secReqArcs: 6, secEdges: 4, secArcs: 4}[sec]
	if len(parts) != want {
		return fmt.Errorf("line %d: want %d fields, got %d: %w", lineNo, want, len(parts), ErrSyntax)
	}
	nums := make([]int64, len(parts))
	for i, p := range parts {
		if i == 0 {
			if sec == secReqNodes {
				v, err := strconv.ParseInt(strings.TrimLeft(p, "Nn"), 10, 64)
				if err != nil {
					return fmt.Errorf("line %d: node label %q: %w", lineNo, p, ErrSyntax)
				}
				nums[0] = v
			}
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: field %d %q: %w", lineNo, i+1, p, ErrSyntax)
		}
		nums[i] = v
	}
	switch sec {
	case secReqNodes:
		g.Nodes = append(g.Nodes, NodeService{Vertex: int(nums[0]), Demand: nums[1], ServiceCost: nums[2]})
	case secReqEdges:
		g.Edges = append(g.Edges, Link{From: int(nums[1]), To: int(nums[2]), Cost: nums[3], Demand: nums[4], ServiceCost: nums[5]})
	case secReqArcs:
		g.Arcs = append(g.Arcs, Link{From: int(nums[1]), To: int(nums[2]), Cost: nums[3], Demand: nums[4], ServiceCost: nums[5]})
	case secEdges:
		g.OptionalEdges = append(g.OptionalEdges, Link{From: int(nums[1]), To: int(nums[2]), Cost: nums[3]})
	case secArcs:
		g.OptionalArcs = append(g.OptionalArcs, Link{From: int(nums[1]), To: int(nums[2]), Cost: nums[3]})
	}
	return nil
}
