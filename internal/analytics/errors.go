package analytics

import "errors"

var (
	// ErrInsufficientHistory indicates fewer trading sessions than the
	// minimum window an indicator or projection requires.
	ErrInsufficientHistory = errors.New("insufficient historical data")

	// ErrInsufficientAssets indicates fewer than two tickers yielded
	// usable data for a cross-asset comparison.
	ErrInsufficientAssets = errors.New("insufficient assets for comparison")

	// ErrInvalidCriterion indicates an unsupported ranking criterion.
	ErrInvalidCriterion = errors.New("invalid ranking criterion")
)
