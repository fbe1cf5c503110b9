// Package metrics exposes Prometheus instruments for the risk engine and
// its indicator sources.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "routerisk"

// Metrics implements risk.Recorder and source.FetchObserver. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	refreshes     *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	sourceFetches *prometheus.CounterVec
	routeScores   prometheus.Histogram
	cachedFactors prometheus.Gauge
}

// New creates the instruments on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Risk factor refresh attempts by outcome.",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Times a request degraded to stale or fallback factors, by path.",
		}, []string{"path"}),
		sourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Indicator source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		routeScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_score",
			Help:      "Distribution of computed route risk scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		cachedFactors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_factors",
			Help:      "Number of weighted factors in the current cache snapshot.",
		}),
	}
	m.registry.MustRegister(
		m.refreshes,
		m.fallbacks,
		m.sourceFetches,
		m.routeScores,
		m.cachedFactors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRefresh counts a refresh attempt.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// ObserveFallback counts a degraded request on path ("score" or "factors").
func (m *Metrics) ObserveFallback(path string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(path).Inc()
}

// ObserveScore records a computed route score.
func (m *Metrics) ObserveScore(score int) {
	if m == nil {
		return
	}
	m.routeScores.Observe(float64(score))
}

// SetCachedFactors sets the cached factor gauge.
func (m *Metrics) SetCachedFactors(n int) {
	if m == nil {
		return
	}
	m.cachedFactors.Set(float64(n))
}

// ObserveSourceFetch counts one source fetch.
func (m *Metrics) ObserveSourceFetch(sourceID, outcome string) {
	if m == nil {
		return
	}
	m.sourceFetches.WithLabelValues(sourceID, outcome).Inc()
}
