package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispering_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whispering_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Gateway metrics
	ExternalMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispering_external_messages_total",
			Help: "External messages handled, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "success" or the error name
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whispering_dispatch_duration_seconds",
			Help:    "Collaborator dispatch latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15},
		},
		[]string{"kind"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispering_blocked_requests_total",
			Help: "Requests rejected before reaching the gateway",
		},
		[]string{"reason"}, // "origin" or "rate_limit"
	)

	// Dictation metrics
	Transcriptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispering_transcriptions_total",
			Help: "Local dictation sessions finished, by outcome",
		},
		[]string{"outcome"},
	)

	UploadAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whispering_asr_upload_attempts_total",
			Help: "ASR upload attempts including retries",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whispering_event_subscribers",
			Help: "Connected event stream subscribers",
		},
	)
)
