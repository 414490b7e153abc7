package selector

import "errors"

var (
	// ErrInvalidInput is returned for an empty candidate list or an
	// unusable halflife. The caller has to fix its input; retrying won't help.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDistributionConstruction is returned when a candidate's history
	// weight is NaN, infinite or negative, which points at corrupted input.
	ErrDistributionConstruction = errors.New("could not construct distribution")

	// ErrSampling is returned when the final weight vector can't be sampled
	// (negative or NaN entries, or a zero total).
	ErrSampling = errors.New("could not sample weights")
)

// errorKind is the metrics label for an error returned by Choose.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDistributionConstruction):
		return "distribution"
	case errors.Is(err, ErrSampling):
		return "sampling"
	default:
		return "other"
	}
}
