// Package solfile reads and writes the plain-text solution format:
//
//	<total cost>
//	<route count>
//	<total elapsed ns>
//	<solve elapsed ns>
//	0 1 <route #> <demand> <cost> <visit count> (D 0,1,1) (S id,from,to) ... (D 0,1,1)
package solfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"carpnav/internal/pathscan"
)

// ErrFormat is returned by Read for malformed input.
var ErrFormat = errors.New("solfile: malformed solution")

const depotToken = "(D 0,1,1)"

// Write serializes sol. totalNS and solveNS are opaque timings recorded by
// the caller.
func Write(w io.Writer, sol *pathscan.Solution, totalNS, solveNS int64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n", sol.TotalCost(), sol.Len(), totalNS, solveNS)
	for i, r := range sol.Routes {
		fmt.Fprintf(bw, "0 1 %d %d %d %d", i+1, r.Demand, r.Cost, len(r.Visits))
		for _, v := range r.Visits {
			switch v.Kind {
			case pathscan.VisitDepot:
				bw.WriteString(" " + depotToken)
			case pathscan.VisitService:
				fmt.Fprintf(bw, " (S %d,%d,%d)", v.ServiceID, v.From, v.To)
			default:
				return fmt.Errorf("route %d: unknown visit kind %q", i+1, v.Kind)
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// RouteLine is one parsed route row.
type RouteLine struct {
	Index  int
	Demand int64
	Cost   int64
	Visits []pathscan.Visit
}

// File is a parsed solution file.
type File struct {
	TotalCost  int64
	RouteCount int
	TotalNS    int64
	SolveNS    int64
	Routes     []RouteLine
}

// Read parses a solution file written by Write.
func Read(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	var lines []string
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 4 {
		return nil, fmt.Errorf("%d header lines: %w", len(lines), ErrFormat)
	}
	var head [4]int64
	for i := range head {
		v, err := strconv.ParseInt(lines[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("header line %d %q: %w", i+1, lines[i], ErrFormat)
		}
		head[i] = v
	}
	f := &File{TotalCost: head[0], RouteCount: int(head[1]), TotalNS: head[2], SolveNS: head[3]}
	for ln, l := range lines[4:] {
		rl, err := parseRoute(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln+5, err)
		}
		f.Routes = append(f.Routes, rl)
	}
	if len(f.Routes) != f.RouteCount {
		return nil, fmt.Errorf("header says %d routes, found %d: %w", f.RouteCount, len(f.Routes), ErrFormat)
	}
	return f, nil
}

func parseRoute(l string) (RouteLine, error) {
	open := strings.IndexByte(l, '(')
	if open < 0 {
		return RouteLine{}, fmt.Errorf("no visits: %w", ErrFormat)
	}
	fields := strings.Fields(l[:open])
	if len(fields) != 6 {
		return RouteLine{}, fmt.Errorf("want 6 route fields, got %d: %w", len(fields), ErrFormat)
	}
	nums := make([]int64, 6)
	for i, s := range fields {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return RouteLine{}, fmt.Errorf("route field %q: %w", s, ErrFormat)
		}
		nums[i] = v
	}
	rl := RouteLine{Index: int(nums[2]), Demand: nums[3], Cost: nums[4]}
	rest := l[open:]
	for rest != "" {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		end := strings.IndexByte(rest, ')')
		if rest[0] != '(' || end < 0 {
			return RouteLine{}, fmt.Errorf("visit token %q: %w", rest, ErrFormat)
		}
		tok := rest[1:end]
		rest = rest[end+1:]
		kind, body, ok := strings.Cut(tok, " ")
		if !ok {
			return RouteLine{}, fmt.Errorf("visit token %q: %w", tok, ErrFormat)
		}
		parts := strings.Split(body, ",")
		if len(parts) != 3 {
			return RouteLine{}, fmt.Errorf("visit token %q: %w", tok, ErrFormat)
		}
		var v [3]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return RouteLine{}, fmt.Errorf("visit token %q: %w", tok, ErrFormat)
			}
			v[i] = n
		}
		switch pathscan.VisitKind(kind) {
		case pathscan.VisitDepot:
			rl.Visits = append(rl.Visits, pathscan.Visit{Kind: pathscan.VisitDepot})
		case pathscan.VisitService:
			rl.Visits = append(rl.Visits, pathscan.Visit{Kind: pathscan.VisitService, ServiceID: v[0], From: v[1], To: v[2]})
		default:
			return RouteLine{}, fmt.Errorf("visit kind %q: %w", kind, ErrFormat)
		}
	}
	if len(rl.Visits) != int(nums[5]) {
		return RouteLine{}, fmt.Errorf("declared %d visits, found %d: %w", nums[5], len(rl.Visits), ErrFormat)
	}
	return rl, nil
}
