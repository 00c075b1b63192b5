package utils

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned by a variant attempt that completed without
// error but found nothing, so TryVariants moves on to the next name.
var ErrNoMatch = errors.New("no match")

// VariantRetry walks a list of alternative spellings of the same lookup
// (e.g. "MS-20", "MS20", "Korg MS-20") until one of them succeeds.
// There is no delay between attempts; these are naming retries, not
// network back-off.
type VariantRetry struct {
	Logger *Logger
}

// TryVariants calls fn with each variant in order and stops at the first
// nil error. It returns the winning variant, or the last error seen.
func (r *VariantRetry) TryVariants(operationName string, variants []string, fn func(variant string) error) (string, error) {
	if len(variants) == 0 {
		return "", fmt.Errorf("%s: no variants to try", operationName)
	}

	var lastErr error
	for i, v := range variants {
		lastErr = fn(v)
		if lastErr == nil {
			if i > 0 && r.Logger != nil {
				r.Logger.Debug("[variants] %s matched on variant %d/%d: %q", operationName, i+1, len(variants), v)
			}
			return v, nil
		}
		if r.Logger != nil && i < len(variants)-1 {
			r.Logger.Debug("[variants] %s: %q failed (%v), trying next", operationName, v, lastErr)
		}
	}

	return "", fmt.Errorf("%s failed for %d variants: %w", operationName, len(variants), lastErr)
}
