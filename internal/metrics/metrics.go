// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SegmentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentkb_segments_created_total",
			Help: "Knowledge segments written, by kind and split policy",
		},
		[]string{"kind", "policy"},
	)

	EmbeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentkb_embedding_requests_total",
			Help: "Embedding provider calls by outcome",
		},
		[]string{"operation", "status"},
	)

	EmbeddingTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentkb_embedding_tokens_total",
			Help: "Tokens reported or estimated for embedded text",
		},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentkb_generation_duration_seconds",
			Help:    "Semantic segmentation latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"model"},
	)

	RegenerationSegments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentkb_regeneration_segments_total",
			Help: "Segments processed by embedding regeneration",
		},
		[]string{"outcome"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentkb_search_duration_seconds",
			Help:    "Similarity search latency including query embedding",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentkb_search_results_count",
			Help:    "Results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentkb_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentkb_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentkb_jobs_processed_total",
			Help: "Background jobs processed by final status",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SegmentsCreated,
			EmbeddingRequests,
			EmbeddingTokens,
			GenerationDuration,
			RegenerationSegments,
			SearchDuration,
			SearchResults,
			CacheHits,
			CacheMisses,
			JobsProcessed,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
