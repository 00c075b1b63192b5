package scraper

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSourceUnavailable covers network failures, non-2xx answers and
	// pages whose markup no longer matches any extraction rule.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited means the provider refused the call with a 429 or an
	// equivalent throttling page.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotConfigured is returned by adapters missing credentials or a base URL.
	ErrNotConfigured = fmt.Errorf("%w: not configured", ErrSourceUnavailable)
)

// HTTPError is a non-2xx answer from a provider.
type HTTPError struct {
	Source     string
	URL        string
	StatusCode int
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: GET %s: status %d %s", e.Source, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is maps 429 to ErrRateLimited and every other status to ErrSourceUnavailable.
func (e *HTTPError) Is(target error) bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return target == ErrRateLimited
	}
	return target == ErrSourceUnavailable
}

// Unavailable wraps err as a source failure, keeping err in the chain.
func Unavailable(source, op string, err error) error {
	return fmt.Errorf("%s: %s: %w: %w", source, op, ErrSourceUnavailable, err)
}

// NoResults reports markup drift: the page loaded but nothing matched.
func NoResults(source, what string) error {
	return fmt.Errorf("%s: %w: no %s matched any selector", source, ErrSourceUnavailable, what)
}
