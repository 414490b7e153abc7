// Package simulate runs the selector many times over fixed inputs and
// tallies the results, as a sanity check on the weighting.
package simulate

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"go.nextspeaker.dev/nextspeaker/roster"
)

// DefaultRuns is the number of choices made when Options.Runs is zero.
const DefaultRuns = 1000

// Chooser is implemented by *selector.Selector.
type Chooser interface {
	Choose(ctx context.Context, candidates, history []string, halflife float64) (string, error)
}

type Options struct {
	Runs    int
	Workers int
}

// Tally is how often a candidate was chosen.
type Tally struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Results has one Tally per candidate, most chosen first.
type Results []Tally

// Total returns the number of choices made.
func (rs Results) Total() int {
	total := 0
	for _, r := range rs {
		total += r.Count
	}
	return total
}

// Fraction returns the share of choices that went to name.
func (rs Results) Fraction(name string) float64 {
	total := rs.Total()
	if total == 0 {
		return 0
	}
	for _, r := range rs {
		if r.Name == name {
			return float64(r.Count) / float64(total)
		}
	}
	return 0
}

// Run makes opts.Runs choices from the roster. History entries that are not
// candidates are ignored, as they would be for a real choice.
func Run(ctx context.Context, ch Chooser, r roster.Roster, opts Options) (Results, error) {
	ctx, span := tracing.Start(ctx, "simulate.Run")
	defer span.End()

	log := logger.FromContext(ctx)

	candidates, history, halflife, err := r.Eligible()
	if err != nil {
		return nil, err
	}

	runs := opts.Runs
	if runs <= 0 {
		runs = DefaultRuns
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, runs)

	span.SetAttributes(
		attribute.Int("runs", runs),
		attribute.Int("candidates", len(candidates)),
		attribute.Int("history", len(history)),
	)

	log.DebugContext(ctx, "starting simulation",
		"runs", runs, "workers", workers,
		"candidates", len(candidates), "history", len(history), "halflife", halflife)

	var mu sync.Mutex
	counts := make(map[string]int, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		n := runs / workers
		if w < runs%workers {
			n++
		}
		g.Go(func() error {
			local := make(map[string]int, len(candidates))
			for range n {
				if err := ctx.Err(); err != nil {
					return err
				}
				name, err := ch.Choose(ctx, candidates, history, halflife)
				if err != nil {
					return fmt.Errorf("simulated choice: %w", err)
				}
				local[name]++
			}

			mu.Lock()
			defer mu.Unlock()
			for name, c := range local {
				counts[name] += c
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return tallies(candidates, counts), nil
}

func tallies(candidates []string, counts map[string]int) Results {
	seen := make(map[string]bool, len(candidates))
	results := make(Results, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		results = append(results, Tally{Name: c, Count: counts[c]})
	}

	slices.SortStableFunc(results, func(a, b Tally) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return results
}
