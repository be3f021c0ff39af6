package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/goklt/internal/config"
	"github.com/MeKo-Tech/goklt/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the tracking API",
		Long: `Start an HTTP server that tracks uploaded frame sequences.

The server provides the following endpoints:
  POST /track     - Track the frames of a multipart upload (field "frames")
  GET  /ws/track  - WebSocket session, every binary message is one frame
  GET  /health    - Health check endpoint
  GET  /metrics   - Prometheus metrics

Tracker, pyramid, detector and manager settings come from the
configuration file and KLT_* environment variables. Every upload and every
WebSocket connection is tracked by its own track manager.

Examples:
  klt serve
  klt serve --port 8080
  KLT_MANAGER_MAX_FEATURES=500 klt serve --host 0.0.0.0 --port 3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return runServe(ctx, a)
		},
	}

	d := config.DefaultConfig()
	serveCmd.Flags().StringP("host", "H", d.Server.Host, "server host")
	serveCmd.Flags().IntP("port", "p", d.Server.Port, "server port")
	serveCmd.Flags().String("cors-origin", d.Server.CORSOrigin, "CORS allowed origins")
	serveCmd.Flags().Int64("max-upload-size", d.Server.MaxUploadMB, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", d.Server.TimeoutSec, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", d.Server.ShutdownTimeout, "shutdown timeout in seconds")

	bindFlags(a.v, serveCmd.Flags(), []flagBinding{
		{"server.host", "host"},
		{"server.port", "port"},
		{"server.cors_origin", "cors-origin"},
		{"server.max_upload_mb", "max-upload-size"},
		{"server.timeout_sec", "timeout"},
		{"server.shutdown_timeout", "shutdown-timeout"},
	})
	return serveCmd
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	if cfg == nil {
		return errors.New("configuration not loaded")
	}

	trackServer, err := server.NewServer(server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Track:       cfg.ToTrackConfig(),
		Detector:    cfg.Detector,
		Pyramid:     cfg.ToPyramidBuilder(),
		Load:        cfg.ToLoadOptions(),
		Precision:   cfg.Output.Precision,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	trackServer.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting tracking server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	a.logger.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("Graceful shutdown completed")
	return nil
}
