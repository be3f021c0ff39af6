package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Frames tracked per source: http, websocket
	framesTotal *prometheus.CounterVec

	uploadSizeBytes prometheus.Histogram

	// WebSocket metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)
	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klt_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "klt_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		framesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klt_frames_total",
				Help: "Total number of frames tracked",
			},
			[]string{"source", "status"},
		),
		uploadSizeBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "klt_upload_size_bytes",
				Help:    "Size of uploaded frames in bytes",
				Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
			},
		),
		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "klt_websocket_active_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		websocketMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klt_websocket_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction"}, // sent, received
		),
	}
}
