package telemetry

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets covers inference latencies from 100ms to 2 minutes.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusefind_provider_requests_total",
			Help: "Provider invocations by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fusefind_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// DispatchDuration is bounded by the slowest enabled provider.
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fusefind_dispatch_duration_seconds",
			Help:    "End-to-end fan-out duration",
			Buckets: LLMBuckets,
		},
	)

	TTSRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fusefind_tts_requests_total",
			Help: "Speech synthesis requests",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderLatency,
		DispatchDuration,
		TTSRequestsTotal,
	)
}
