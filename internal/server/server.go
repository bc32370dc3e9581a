/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/fillline/internal/api"
	"github.com/friendsincode/fillline/internal/auth"
	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/events"
	"github.com/friendsincode/fillline/internal/jobs"
	"github.com/friendsincode/fillline/internal/store"
	"github.com/friendsincode/fillline/internal/telemetry"
)

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg        *config.Config
	sched      *config.Scheduling
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	store  *store.Store
	bus    *events.Bus
	runner *jobs.Runner
	api    *api.API

	bgCancel context.CancelFunc
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, sched *config.Scheduling, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("fillline-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket connections; the event stream is long-lived.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		sched:  sched,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 so the WebSocket event stream is not cut off;
		// the middleware timeout (60s) covers plain request/response routes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	st, err := store.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.store = st
	s.DeferClose(st.Close)

	s.runner = jobs.New(s.store, s.bus, s.sched, 0, s.logger)

	var authMiddleware func(http.Handler) http.Handler
	if s.cfg.JWTSigningKey != "" {
		authMiddleware = auth.Middleware([]byte(s.cfg.JWTSigningKey))
	} else {
		s.logger.Warn().Msg("FILLLINE_JWT_SIGNING_KEY not set, API authentication disabled")
	}

	s.api = api.New(s.store, s.runner, s.bus, s.sched, authMiddleware, s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

func (s *Server) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	s.runner.Start(ctx)
}

func (s *Server) stopWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.runner.Wait()
	s.bgCancel = nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
