// Package roster holds the candidates, the selection history and the
// halflife, and prepares them for the selector.
package roster

import (
	"fmt"
	"strings"

	"go.nextspeaker.dev/nextspeaker/selector"
)

// Roster is a snapshot of everything a choice depends on. History is
// oldest first.
type Roster struct {
	Candidates []string `json:"candidates"`
	History    []string `json:"history"`
	Halflife   float64  `json:"halflife"`
}

// New returns an empty roster with the default halflife.
func New() Roster {
	return Roster{Halflife: selector.DefaultHalflife}
}

// ParseLines splits newline delimited text into names, dropping blank
// lines and surrounding whitespace.
func ParseLines(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names
}

// FormatLines is the inverse of ParseLines.
func FormatLines(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "\n") + "\n"
}

// FilterHistory returns the history entries that are current candidates,
// in their original order.
func FilterHistory(candidates, history []string) []string {
	current := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		current[c] = struct{}{}
	}

	filtered := make([]string, 0, len(history))
	for _, h := range history {
		if _, ok := current[h]; ok {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

// Record appends a selection to the history.
func (r *Roster) Record(name string) {
	r.History = append(r.History, name)
}

// Eligible returns the candidates, the history filtered to current
// candidates and the halflife, ready to pass to the selector.
func (r Roster) Eligible() (candidates, history []string, halflife float64, err error) {
	if len(r.Candidates) == 0 {
		return nil, nil, 0, fmt.Errorf("%w: candidate list is empty", selector.ErrInvalidInput)
	}
	if err := ValidateHalflife(r.Halflife); err != nil {
		return nil, nil, 0, err
	}
	return r.Candidates, FilterHistory(r.Candidates, r.History), r.Halflife, nil
}
