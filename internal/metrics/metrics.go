// Package metrics holds the Prometheus collectors of the service.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drinkpoint"

// Capture outcomes.
const (
	OutcomeAwarded        = "awarded"
	OutcomeNoPoints       = "no_points"
	OutcomeUnclassifiable = "unclassifiable"
	OutcomeFailed         = "failed"
)

// Metrics bundles Prometheus collectors.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimited        prometheus.Counter
	capturesTotal      *prometheus.CounterVec
	pointsAwarded      prometheus.Counter
	badgesGranted      *prometheus.CounterVec
	charactersUnlocked *prometheus.CounterVec
	classifierDuration *prometheus.HistogramVec
	classifierCacheHit prometheus.Counter
	rulesReloads       *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Number of HTTP requests rejected due to rate limiting",
		}),
		capturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Drink captures by source and outcome",
		}, []string{"source", "outcome"}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited to users",
		}),
		badgesGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_granted_total",
			Help:      "Badges granted by id",
		}, []string{"badge"}),
		charactersUnlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "characters_unlocked_total",
			Help:      "Characters unlocked by id",
		}, []string{"character"}),
		classifierDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_duration_seconds",
			Help:      "Vision classifier latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"status"}),
		classifierCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_cache_hits_total",
			Help:      "Classifications served from cache",
		}),
		rulesReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_reloads_total",
			Help:      "Rules file reload attempts",
		}, []string{"result"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.rateLimited,
		m.capturesTotal,
		m.pointsAwarded,
		m.badgesGranted,
		m.charactersUnlocked,
		m.classifierDuration,
		m.classifierCacheHit,
		m.rulesReloads,
	)

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records timing and status information.
func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// IncRateLimited increments the rate limit counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// ObserveCapture counts one capture and the points it credited.
func (m *Metrics) ObserveCapture(source, outcome string, points int) {
	if m == nil {
		return
	}
	m.capturesTotal.WithLabelValues(source, outcome).Inc()
	if points > 0 {
		m.pointsAwarded.Add(float64(points))
	}
}

// IncBadgeGranted counts a newly granted badge.
func (m *Metrics) IncBadgeGranted(badge string) {
	if m == nil {
		return
	}
	m.badgesGranted.WithLabelValues(badge).Inc()
}

// IncCharacterUnlocked counts a newly unlocked character.
func (m *Metrics) IncCharacterUnlocked(character string) {
	if m == nil {
		return
	}
	m.charactersUnlocked.WithLabelValues(character).Inc()
}

// ObserveClassifier records one upstream classification call.
func (m *Metrics) ObserveClassifier(dur time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.classifierDuration.WithLabelValues(status).Observe(dur.Seconds())
}

// IncClassifierCacheHit counts a classification served from cache.
func (m *Metrics) IncClassifierCacheHit() {
	if m == nil {
		return
	}
	m.classifierCacheHit.Inc()
}

// IncRulesReload counts a rules reload attempt.
func (m *Metrics) IncRulesReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.rulesReloads.WithLabelValues(result).Inc()
}
