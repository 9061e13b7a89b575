// internal/scraper/types.go
package scraper

import (
	"context"
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrStructureMismatch means a required selector matched nothing on the page.
	ErrStructureMismatch = errors.New("page structure does not match selectors")
	ErrEmptyTerm         = errors.New("search term cannot be empty")
	ErrDisallowed        = errors.New("address disallowed by robots.txt")
	// ErrFirstPage wraps a transport failure on the first listing page.
	ErrFirstPage = errors.New("first listing page could not be fetched")
)

// Fetcher retrieves the raw content of a single address. Implementations
// make exactly one attempt; any failure is returned as an error.
type Fetcher interface {
	Fetch(ctx context.Context, address string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, address string) ([]byte, error)

// Fetch calls f(ctx, address).
func (f FetcherFunc) Fetch(ctx context.Context, address string) ([]byte, error) {
	return f(ctx, address)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Address    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.Address)
}
