package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream provider call rate per provider. Watch for: error vs success ratio.
	ProviderCallsTotal *prometheus.CounterVec

	// Upstream provider latency. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	ProviderCallDuration *prometheus.HistogramVec

	// Retry attempts per provider. Watch for: high retries = unstable upstream.
	ProviderRetriesTotal *prometheus.CounterVec

	// Which fallback stage served each fetch. Watch for: scraper/storage share rising = primary failing.
	FallbackStageTotal *prometheus.CounterVec

	// Cache hits per data type.
	CacheHitsTotal *prometheus.CounterVec

	// Cache operation errors. Cache failures degrade to upstream fetches, not request errors.
	CacheErrorsTotal *prometheus.CounterVec

	// Subscriptions evaluated by the alert engine.
	AlertsEvaluatedTotal prometheus.Counter

	// Alert notifications dispatched, by alert category.
	AlertsSentTotal *prometheus.CounterVec

	// Notifications skipped because the cooldown had not elapsed.
	AlertsSuppressedTotal prometheus.Counter

	// Dispatch failures. Dropped, never retried; watch for SMTP trouble.
	NotificationFailuresTotal prometheus.Counter

	// Sweep executions and duration. Watch for: duration approaching the sweep interval.
	SweepRunsTotal prometheus.Counter
	SweepDuration  prometheus.Histogram

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of upstream provider calls",
		},
		[]string{"provider", "status"},
	)
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerCallDurationSeconds",
			Help:    "Upstream provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerRetriesTotal",
			Help: "Total number of retry attempts per upstream provider",
		},
		[]string{"provider"},
	)
	FallbackStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbackStageTotal",
			Help: "Fetches served per fallback stage (cache, primary, scraper, storage, none)",
		},
		[]string{"dataType", "stage"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits per data type",
		},
		[]string{"dataType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"},
	)
	AlertsEvaluatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertsEvaluatedTotal",
			Help: "Subscriptions evaluated against new readings",
		},
	)
	AlertsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsSentTotal",
			Help: "Alert notifications dispatched, by alert category",
		},
		[]string{"alertType"},
	)
	AlertsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertsSuppressedTotal",
			Help: "Alerts suppressed by the notification cooldown",
		},
	)
	NotificationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notificationFailuresTotal",
			Help: "Alert dispatch failures (logged and dropped)",
		},
	)
	SweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweepRunsTotal",
			Help: "Subscription sweep executions",
		},
	)
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweepDurationSeconds",
			Help:    "Subscription sweep duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderCallDuration, ProviderRetriesTotal,
		FallbackStageTotal, CacheHitsTotal, CacheErrorsTotal,
		AlertsEvaluatedTotal, AlertsSentTotal, AlertsSuppressedTotal,
		NotificationFailuresTotal, SweepRunsTotal, SweepDuration,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
