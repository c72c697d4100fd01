// Package server is the HTTP surface of the backend: the API groups the
// display frontend and the setup app talk to.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openclock/clockd/pkg/auth"
	"github.com/openclock/clockd/pkg/clock"
)

// Version is set at build time.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP listener and its graceful shutdown.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// New creates a Server for app. The health probes stay outside the API key
// gate; everything else goes through it.
func New(app *clock.App, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              app.Config().Server.Address,
			Handler:           routes(app, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With("component", "server"),
	}
}

// routes builds the full handler chain: request logging outermost, health
// probes open, the API groups behind the key gate.
func routes(app *clock.App, log *slog.Logger) http.Handler {
	cfg := app.Config()

	ring := auth.NewKeyring(cfg.Auth.Keys)
	gated := auth.Middleware(ring, cfg.Auth.Enabled, log)(NewHandler(app))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", app.Health.LivenessHandler())
	root.HandleFunc("GET /readyz", app.Health.ReadinessHandler())
	root.Handle("/", gated)

	return requestLogging(log)(root)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "address", s.httpServer.Addr, "version", Version)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(sctx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
