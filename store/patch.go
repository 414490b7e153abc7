package store

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/selector"
)

// Patch applies a JSON merge patch (RFC 7386) to the JSON form of r, for
// example {"halflife": 4} or {"history": []}.
func Patch(r roster.Roster, patch []byte) (roster.Roster, error) {
	orig, err := json.Marshal(r)
	if err != nil {
		return roster.Roster{}, err
	}

	merged, err := jsonpatch.MergePatch(orig, patch)
	if err != nil {
		return roster.Roster{}, fmt.Errorf("%w: merge patch: %w", selector.ErrInvalidInput, err)
	}

	var out roster.Roster
	if err := json.Unmarshal(merged, &out); err != nil {
		return roster.Roster{}, fmt.Errorf("%w: patched state: %w", selector.ErrInvalidInput, err)
	}

	if err := roster.ValidateHalflife(out.Halflife); err != nil {
		return roster.Roster{}, err
	}

	return out, nil
}
