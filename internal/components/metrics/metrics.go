// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookgateway_http_requests_total",
		Help: "Total number of HTTP requests served by the gateway",
	}, []string{"method", "path", "status"})

	HttpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookgateway_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookgateway_upstream_requests_total",
		Help: "Requests made to book platforms, by operation and outcome",
	}, []string{"platform", "op", "outcome"})

	UpstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookgateway_upstream_retries_total",
		Help: "Failed upstream attempts that were retried",
	}, []string{"platform", "op"})

	ExtractedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookgateway_extracted_records_total",
		Help: "Book records extracted from search result pages",
	}, []string{"platform"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookgateway_cache_lookups_total",
		Help: "Response cache lookups, by cache name and result",
	}, []string{"cache", "result"})
)
