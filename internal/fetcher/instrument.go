package fetcher

import (
	"context"
	"net/url"
	"time"
)

// Observer records the outcome of each fetch.
type Observer interface {
	ObserveFetch(scheme string, d time.Duration, size int, err error)
}

type instrumented struct {
	next     Fetcher
	observer Observer
}

// Instrument wraps f so every call is reported to o.
func Instrument(f Fetcher, o Observer) Fetcher {
	if o == nil {
		return f
	}
	return &instrumented{next: f, observer: o}
}

func (i *instrumented) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	scheme := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}

	start := time.Now()
	data, err := i.next.Fetch(ctx, rawURL)
	i.observer.ObserveFetch(scheme, time.Since(start), len(data), err)

	return data, err
}
