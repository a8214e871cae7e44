// Package metrics exports pipeline telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "thumbnail_proxy"

// Prometheus records cache, fetch and render metrics.
// A nil *Prometheus is valid and records nothing.
type Prometheus struct {
	cacheEvents    *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	fetchBytes     prometheus.Counter
	renderDuration *prometheus.HistogramVec
	renderBytes    prometheus.Counter
}

// New registers the metrics with reg; a nil reg selects the default registerer.
func New(namespace string, reg prometheus.Registerer) (*Prometheus, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Source cache hits, misses and evictions.",
		}, []string{"event"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of source fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scheme"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Count of failed source fetches.",
		}, []string{"scheme"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Cumulative size of fetched sources.",
		}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "End-to-end render latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		renderBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rendered_bytes_total",
			Help:      "Cumulative size of rendered images.",
		}),
	}

	var err error
	if p.cacheEvents, err = register(reg, p.cacheEvents); err != nil {
		return nil, err
	}
	if p.fetchDuration, err = register(reg, p.fetchDuration); err != nil {
		return nil, err
	}
	if p.fetchErrors, err = register(reg, p.fetchErrors); err != nil {
		return nil, err
	}
	if p.fetchBytes, err = register(reg, p.fetchBytes); err != nil {
		return nil, err
	}
	if p.renderDuration, err = register(reg, p.renderDuration); err != nil {
		return nil, err
	}
	if p.renderBytes, err = register(reg, p.renderBytes); err != nil {
		return nil, err
	}

	return p, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// CacheHit implements cache.Observer.
func (p *Prometheus) CacheHit() { p.cacheEvent("hit") }

// CacheMiss implements cache.Observer.
func (p *Prometheus) CacheMiss() { p.cacheEvent("miss") }

// CacheEviction implements cache.Observer.
func (p *Prometheus) CacheEviction() { p.cacheEvent("eviction") }

func (p *Prometheus) cacheEvent(event string) {
	if p == nil {
		return
	}
	p.cacheEvents.WithLabelValues(event).Inc()
}

// ObserveFetch implements fetcher.Observer.
func (p *Prometheus) ObserveFetch(scheme string, d time.Duration, size int, err error) {
	if p == nil {
		return
	}
	p.fetchDuration.WithLabelValues(scheme).Observe(d.Seconds())
	if err != nil {
		p.fetchErrors.WithLabelValues(scheme).Inc()
		return
	}
	p.fetchBytes.Add(float64(size))
}

// ObserveRender records a finished render.
func (p *Prometheus) ObserveRender(outcome string, d time.Duration, size int) {
	if p == nil {
		return
	}
	p.renderDuration.WithLabelValues(outcome).Observe(d.Seconds())
	p.renderBytes.Add(float64(size))
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
