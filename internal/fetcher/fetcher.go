// Package fetcher retrieves raw source bytes for the thumbnail pipeline.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrFetch is returned when a source cannot be retrieved: network failure,
// non-success status, timeout, oversized body or unsupported scheme.
var ErrFetch = errors.New("fetch source")

// Fetcher retrieves the bytes behind a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Mux dispatches to a Fetcher registered for the URL's scheme.
type Mux struct {
	schemes map[string]Fetcher
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{schemes: make(map[string]Fetcher)}
}

// Handle registers f for the given schemes.
func (m *Mux) Handle(f Fetcher, schemes ...string) {
	for _, s := range schemes {
		m.schemes[strings.ToLower(s)] = f
	}
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrFetch, err)
	}

	f, ok := m.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrFetch, u.Scheme)
	}

	return f.Fetch(ctx, rawURL)
}
