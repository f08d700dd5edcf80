// Command carpsolve runs path-scanning over CARP instance files and writes
// one sol-<name>.dat per instance.
//
// Usage:
//
//	carpsolve [flags] <file|dir>...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"carpnav/internal/instance"
	"carpnav/internal/solfile"
	"carpnav/internal/solver"
)

type options struct {
	OutDir  string
	Report  bool
	Verify  bool
	Jobs    int
	Workers int
	Budget  time.Duration
}

// result is one line of the summary table.
type result struct {
	Name    string
	Cost    int64
	Routes  int
	Optimal int64
	Elapsed time.Duration
	Err     error
}

func main() {
	var opts options
	flag.StringVar(&opts.OutDir, "out", ".", "directory for sol-<name>.dat files")
	flag.BoolVar(&opts.Report, "report", false, "also write report-<name>.json")
	flag.BoolVar(&opts.Verify, "verify", false, "read each written solution back and check it")
	flag.IntVar(&opts.Jobs, "jobs", runtime.GOMAXPROCS(0), "instances solved concurrently")
	flag.IntVar(&opts.Workers, "workers", 1, "goroutines per shortest-path computation")
	flag.DurationVar(&opts.Budget, "budget", 0, "time budget per instance (0 = none)")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	if lvl, err := zerolog.ParseLevel(*level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: carpsolve [flags] <file|dir>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts, flag.Args(), os.Stdout); err != nil {
		log.Error().Err(err).Msg("carpsolve")
		os.Exit(1)
	}
}

// run solves every instance under paths and prints a summary to w. It
// returns the joined per-instance errors.
func run(ctx context.Context, opts options, paths []string, w io.Writer) error {
	files, err := expand(paths)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return err
	}

	results := make([]result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	var mu sync.Mutex
	var errs []error
	for i, path := range files {
		g.Go(func() error {
			res := solveFile(ctx, opts, path)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", path, res.Err))
				mu.Unlock()
			}
			// per-instance failures must not cancel the rest of the batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	printSummary(w, results)
	return errors.Join(errs...)
}

func solveFile(ctx context.Context, opts options, path string) result {
	start := time.Now()
	g, err := instance.ParseFile(path)
	if err != nil {
		return result{Name: filepath.Base(path), Err: err}
	}
	res := result{Name: g.Name, Optimal: g.OptimalValue}
	p, err := solver.NewProblem(g, opts.Workers)
	if err != nil {
		res.Err = err
		return res
	}
	s := &solver.Solver{Budget: opts.Budget}
	out, err := s.Solve(ctx, p)
	if err != nil {
		res.Err = err
		return res
	}
	res.Cost = out.Solution.TotalCost()
	res.Routes = out.Solution.Len()

	solPath := filepath.Join(opts.OutDir, "sol-"+g.Name+".dat")
	if err := writeFile(solPath, func(w io.Writer) error {
		return solfile.Write(w, out.Solution, time.Since(start).Nanoseconds(), out.Construct.Nanoseconds())
	}); err != nil {
		res.Err = err
		return res
	}
	if opts.Report {
		rep, err := p.Report()
		if err != nil {
			res.Err = err
			return res
		}
		repPath := filepath.Join(opts.OutDir, "report-"+g.Name+".json")
		if err := writeFile(repPath, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}); err != nil {
			res.Err = err
			return res
		}
	}
	if opts.Verify {
		if err := verify(solPath, g, out.Solution.TotalCost()); err != nil {
			res.Err = err
			return res
		}
		if err := out.Solution.Validate(g); err != nil {
			res.Err = err
			return res
		}
	}
	res.Elapsed = time.Since(start)
	log.Debug().Str("instance", g.Name).Str("file", solPath).Dur("elapsed", res.Elapsed).Msg("written")
	return res
}

// errVerify is returned when a written solution does not read back to the
// solution that produced it.
var errVerify = errors.New("carpsolve: solution file mismatch")

func verify(path string, g *instance.Graph, cost int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sf, err := solfile.Read(f)
	if err != nil {
		return err
	}
	if sf.TotalCost != cost {
		return fmt.Errorf("total cost %d, want %d: %w", sf.TotalCost, cost, errVerify)
	}
	var sum int64
	served := map[int]bool{}
	for _, rl := range sf.Routes {
		sum += rl.Cost
		for _, v := range rl.Visits {
			if v.ServiceID != 0 {
				if served[v.ServiceID] {
					return fmt.Errorf("service %d visited twice: %w", v.ServiceID, errVerify)
				}
				served[v.ServiceID] = true
			}
		}
	}
	if sum != cost {
		return fmt.Errorf("route costs sum to %d, want %d: %w", sum, cost, errVerify)
	}
	if len(served) != g.RequiredCount() {
		return fmt.Errorf("%d services served, want %d: %w", len(served), g.RequiredCount(), errVerify)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// expand turns files and directories (their regular, non-hidden files)
// into a sorted file list.
func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func printSummary(w io.Writer, results []result) {
	fmt.Fprintf(w, "%-24s %10s %7s %10s %12s  %s\n", "instance", "cost", "routes", "optimal", "elapsed", "status")
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = solver.Outcome(r.Err)
		}
		fmt.Fprintf(w, "%-24s %10d %7d %10d %12s  %s\n", r.Name, r.Cost, r.Routes, r.Optimal, r.Elapsed.Round(time.Microsecond), status)
	}
}
