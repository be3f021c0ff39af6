// Package server exposes the tracker over HTTP and WebSocket.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/goklt/internal/detect"
	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/MeKo-Tech/goklt/internal/metrics"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
	"github.com/MeKo-Tech/goklt/internal/report"
	"github.com/MeKo-Tech/goklt/internal/track"
	"github.com/MeKo-Tech/goklt/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	track       track.Config
	detector    track.Detector
	builder     pyramid.Builder
	load        gray.LoadOptions
	precision   int
	corsOrigin  string
	maxUploadMB int64

	logger   *slog.Logger
	registry *prometheus.Registry
	recorder *metrics.Recorder
	metrics  *serverMetrics
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64

	Track     track.Config
	Detector  detect.Config
	Pyramid   pyramid.Builder
	Load      gray.LoadOptions
	Precision int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Registry defaults to a new registry with the Go and process collectors.
	Registry *prometheus.Registry
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Build   version.Build `json:"build"`
	Time    string        `json:"time"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// TrackResponse is the JSON body of a successful /track request.
type TrackResponse struct {
	Success bool             `json:"success"`
	Report  *report.Sequence `json:"report"`
}

// NewServer validates the tracking configuration and prepares the metrics.
func NewServer(config Config) (*Server, error) {
	if err := config.Track.Validate(); err != nil {
		return nil, fmt.Errorf("invalid track configuration: %w", err)
	}
	if err := config.Pyramid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pyramid configuration: %w", err)
	}
	detector, err := config.Detector.New()
	if err != nil {
		return nil, fmt.Errorf("invalid detector configuration: %w", err)
	}
	if config.MaxUploadMB <= 0 {
		return nil, errors.New("max upload size must be positive")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	corsOrigin := config.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	return &Server{
		track:       config.Track,
		detector:    detector,
		builder:     config.Pyramid,
		load:        config.Load,
		precision:   config.Precision,
		corsOrigin:  corsOrigin,
		maxUploadMB: config.MaxUploadMB,
		logger:      logger,
		registry:    reg,
		recorder:    metrics.NewRecorder(reg),
		metrics:     newServerMetrics(reg),
	}, nil
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// SetupRoutes registers the endpoints on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/track", s.corsMiddleware(s.trackHandler))
	mux.HandleFunc("/ws/track", s.trackWebSocketHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
}

// newManager creates the track manager of one request or session.
func (s *Server) newManager() (*track.Manager, error) {
	return track.NewManager(s.track, s.detector,
		track.WithLogger(s.logger),
		track.WithMetrics(s.recorder))
}
