// Package selector picks the next speaker from a list of candidates,
// biased away from people chosen recently and, more strongly, from people
// chosen often.
//
// Each candidate's past selections are summed with an exponential decay
// (see Decay) into a history weight. A priority is drawn for every candidate
// from Beta(1, 1+history weight), so frequent speakers usually draw small
// values but can still be picked. Candidates in the last RecencyWindow
// history entries get priority zero, unless that would exclude everybody.
// The result is a weighted random draw over the priorities.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"go.ntppool.org/common/logger"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// DefaultHalflife is the halflife used when the caller has none configured.
const DefaultHalflife = 10.0

// Selector chooses candidates. It holds no state between calls and is safe
// for concurrent use as long as the configured source factory is.
type Selector struct {
	log       *slog.Logger
	metrics   *Metrics
	newSource func() rand.Source
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the logger used for diagnostics. Without it the logger
// from the call's context is used.
func WithLogger(log *slog.Logger) Option {
	return func(sl *Selector) { sl.log = log }
}

// WithMetrics records choices and errors in m.
func WithMetrics(m *Metrics) Option {
	return func(sl *Selector) { sl.metrics = m }
}

// WithSource sets the factory for the random source used by each call. The
// factory is called once per Choose; if it hands out a shared source that
// source must be safe for concurrent use.
func WithSource(fn func() rand.Source) Option {
	return func(sl *Selector) { sl.newSource = fn }
}

// New returns a Selector. By default every call gets its own PCG source
// seeded from the runtime's random generator.
func New(opts ...Option) *Selector {
	sl := &Selector{newSource: newPCGSource}
	for _, opt := range opts {
		opt(sl)
	}
	return sl
}

func newPCGSource() rand.Source {
	return rand.NewPCG(rand.Uint64(), rand.Uint64())
}

var defaultSelector = New()

// Choose picks the next speaker with a default Selector.
func Choose(candidates, history []string, halflife float64) (string, error) {
	return defaultSelector.Choose(context.Background(), candidates, history, halflife)
}

// Choose returns one of candidates. History is oldest first and should only
// contain names from candidates. Halflife is measured in history positions
// and must be positive.
func (sl *Selector) Choose(ctx context.Context, candidates, history []string, halflife float64) (string, error) {
	start := time.Now()

	name, err := sl.choose(ctx, candidates, history, halflife)

	if sl.metrics != nil {
		sl.metrics.TrackChoice(name, err, time.Since(start))
	}

	return name, err
}

func (sl *Selector) choose(ctx context.Context, candidates, history []string, halflife float64) (string, error) {
	src := sl.newSource()

	weights, err := sl.weights(ctx, src, candidates, history, halflife)
	if err != nil {
		return "", err
	}

	idx, err := draw(weights, src)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(candidates) {
		return "", fmt.Errorf("%w: weighted index %d is out of bounds", ErrSampling, idx)
	}

	return candidates[idx], nil
}

// Weights returns the final weight vector Choose would draw from, one
// entry per candidate. It is random: every call samples new priorities.
func (sl *Selector) Weights(ctx context.Context, candidates, history []string, halflife float64) ([]float64, error) {
	return sl.weights(ctx, sl.newSource(), candidates, history, halflife)
}

func (sl *Selector) contextLogger(ctx context.Context) *slog.Logger {
	if sl.log != nil {
		return sl.log
	}
	return logger.FromContext(ctx)
}

func (sl *Selector) weights(ctx context.Context, src rand.Source, candidates, history []string, halflife float64) ([]float64, error) {
	log := sl.contextLogger(ctx)

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: candidate list is empty", ErrInvalidInput)
	}
	if err := checkHalflife(halflife); err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "choosing", "candidates", len(candidates), "history", history)

	if len(history) == 0 {
		weights := make([]float64, len(candidates))
		for i := range weights {
			weights[i] = 1.0
		}
		logWeights(ctx, log, candidates, weights)
		return weights, nil
	}

	historyWeights := HistoryWeights(candidates, history, halflife)
	window := RecencyWindow(len(history), len(candidates))
	recent := recentSet(candidates, history, window)

	log.DebugContext(ctx, "history weights", "weights", historyWeights)

	weights, err := priorities(src, candidates, historyWeights)
	if err != nil {
		return nil, err
	}

	var recentIdx []int
	for i := range candidates {
		if recent[i] {
			recentIdx = append(recentIdx, i)
		}
	}

	log.DebugContext(ctx, "recent candidates", "window", window, "indexes", recentIdx)

	if len(recentIdx) < len(candidates) {
		for _, i := range recentIdx {
			weights[i] = 0
		}
	} else {
		log.DebugContext(ctx, "every candidate is recent, not excluding any")
		if sl.metrics != nil {
			sl.metrics.TrackRecencyFallback()
		}
	}

	logWeights(ctx, log, candidates, weights)

	return weights, nil
}

// priorities draws a Beta(1, 1+w) value for every history weight w.
func priorities(src rand.Source, candidates []string, historyWeights []float64) ([]float64, error) {
	weights := make([]float64, len(candidates))
	for i, name := range candidates {
		hw := historyWeights[i]
		if math.IsNaN(hw) || math.IsInf(hw, 0) || hw < 0 {
			return nil, fmt.Errorf("%w: history weight for %q is %v", ErrDistributionConstruction, name, hw)
		}

		// Beta(1, b) leans toward zero as b grows.
		dist := distuv.Beta{Alpha: 1, Beta: 1 + hw, Src: src}
		weights[i] = dist.Rand()
	}
	return weights, nil
}

func checkHalflife(halflife float64) error {
	if math.IsNaN(halflife) || math.IsInf(halflife, 0) || halflife <= 0 {
		return fmt.Errorf("%w: halflife must be a positive number, got %v", ErrInvalidInput, halflife)
	}
	return nil
}

func logWeights(ctx context.Context, log *slog.Logger, candidates []string, weights []float64) {
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	info := make([]string, len(weights))
	for i, w := range weights {
		info[i] = fmt.Sprintf("%s:%.2f", candidates[i], w)
	}
	log.DebugContext(ctx, "selection weights", "weights", info)
}

// draw picks an index with probability proportional to its weight.
func draw(weights []float64, src rand.Source) (int, error) {
	var total float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return -1, fmt.Errorf("%w: weight %d is %v", ErrSampling, i, w)
		}
		total += w
	}
	if total == 0 {
		return -1, fmt.Errorf("%w: weights sum to zero", ErrSampling)
	}

	idx, ok := sampleuv.NewWeighted(weights, src).Take()
	if !ok {
		return -1, fmt.Errorf("%w: nothing to take from weights", ErrSampling)
	}
	return idx, nil
}
