package selector

import "math"

// Decay is the weight of a selection made t history positions ago, halving
// every halflife positions. Decay(h, 0) is 1 for any positive h.
func Decay(halflife, t float64) float64 {
	return math.Pow(0.5, t/halflife)
}

// RecencyWindow returns how many of the most recent history entries make a
// candidate ineligible: floor(log2(nHistory)), capped at nCandidates/2.
func RecencyWindow(nHistory, nCandidates int) int {
	if nHistory <= 0 {
		return 0
	}
	recent := int(math.Floor(math.Log2(float64(nHistory))))
	return min(recent, nCandidates/2)
}

// HistoryWeights returns, for each candidate, the sum of the decay of every
// history position holding that candidate's name. The most recent entry
// counts 1.
func HistoryWeights(candidates, history []string, halflife float64) []float64 {
	last := len(history) - 1

	byName := make(map[string]float64, len(candidates))
	for i, name := range history {
		byName[name] += Decay(halflife, float64(last-i))
	}

	weights := make([]float64, len(candidates))
	for i, name := range candidates {
		weights[i] = byName[name]
	}
	return weights
}

// recentSet reports which candidates appear in the last n history entries.
func recentSet(candidates, history []string, n int) []bool {
	recent := make([]bool, len(candidates))
	if n <= 0 {
		return recent
	}

	tail := make(map[string]struct{}, n)
	for _, name := range history[len(history)-n:] {
		tail[name] = struct{}{}
	}
	for i, name := range candidates {
		_, recent[i] = tail[name]
	}
	return recent
}
