package roster

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.nextspeaker.dev/nextspeaker/selector"
)

// ValidateHalflife rejects halflives the decay formula can't use.
func ValidateHalflife(h float64) error {
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return fmt.Errorf("%w: halflife must be a positive number, got %v", selector.ErrInvalidInput, h)
	}
	return nil
}

// ParseHalflife parses a decimal ("2.5") or a fraction ("5/2").
func ParseHalflife(s string) (float64, error) {
	s = strings.TrimSpace(s)

	var h float64
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: halflife numerator %q: %w", selector.ErrInvalidInput, num, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: halflife denominator %q: %w", selector.ErrInvalidInput, den, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("%w: halflife denominator is zero", selector.ErrInvalidInput)
		}
		h = n / d
	} else {
		var err error
		h, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: halflife %q: %w", selector.ErrInvalidInput, s, err)
		}
	}

	if err := ValidateHalflife(h); err != nil {
		return 0, err
	}
	return h, nil
}
