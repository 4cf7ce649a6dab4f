package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gold_quote",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gold_quote",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gold_quote",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Upstream fetch metrics ─────────────────────────────────────────────

var (
	UpstreamFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gold_quote",
		Subsystem: "upstream",
		Name:      "fetch_total",
		Help:      "Total upstream fetch attempts per source and outcome.",
	}, []string{"source", "status"})

	UpstreamLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gold_quote",
		Subsystem: "upstream",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful fetch per source.",
	}, []string{"source"})

	StaleServesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gold_quote",
		Subsystem: "upstream",
		Name:      "stale_serves_total",
		Help:      "Total responses served from the stale tier per source.",
	}, []string{"source"})
)

// ── Cache metrics ──────────────────────────────────────────────────────

var (
	QuoteCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gold_quote",
		Subsystem: "cache",
		Name:      "quote_lookups_total",
		Help:      "Quote cache lookups per tier and result.",
	}, []string{"tier", "result"})

	SourceCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gold_quote",
		Subsystem: "cache",
		Name:      "source_lookups_total",
		Help:      "Per-source data cache lookups and results.",
	}, []string{"source", "result"})
)
