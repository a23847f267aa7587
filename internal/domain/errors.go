package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCatalog is returned when the catalog is absent or empty after normalization
	ErrNoCatalog = errors.New("no catalog data available")

	// ErrNoBrandMatch is returned when no catalog title contains the query brand
	ErrNoBrandMatch = errors.New("no products found for brand")

	// ErrLowConfidence is returned when the match confidence is below the threshold
	ErrLowConfidence = errors.New("match confidence below threshold")

	// ErrTargetNotInCatalog is returned when the resolved title cannot be re-located for pricing
	ErrTargetNotInCatalog = errors.New("best match not found for pricing")

	// ErrEmptyFeatureSet is returned when the matched subset yields no usable rows
	ErrEmptyFeatureSet = errors.New("matched subset has no usable rows")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// MatchError carries the cascade's best candidate alongside a resolution
// failure so callers can report what was almost matched.
type MatchError struct {
	BestTitle  string
	Confidence int
	Tier       MatchTier
	Err        error
}

func (e *MatchError) Error() string {
	if e.BestTitle == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (best match: %q, confidence: %d%%)", e.Err, e.BestTitle, e.Confidence)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}
