// Package http assembles the single HTTP surface of the service: the REST
// API, both push transports, and the metrics endpoint.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/utc2/chat-delivery-service/config"
	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
	"github.com/utc2/chat-delivery-service/internal/handler/api"
	"github.com/utc2/chat-delivery-service/internal/handler/sse"
	"github.com/utc2/chat-delivery-service/internal/handler/ws"
	"github.com/utc2/chat-delivery-service/internal/service"
)

// NewRouter mounts every endpoint. The push transports and the REST surface
// share the same session middleware, so one credential works everywhere.
func NewRouter(
	logger *slog.Logger,
	auther service.Auther,
	apiHandler *api.Handler,
	sseHandler *sse.SSEHandler,
	wsHandler *ws.WSHandler,
) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", apiHandler.MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(auther, logger))

		r.Route("/api", func(r chi.Router) {
			r.Handle("/events", sseHandler)
			r.Handle("/ws", wsHandler)
			apiHandler.Routes(r)
		})
	})

	return r
}

// Server owns the process's one HTTP listener.
type Server struct {
	logger *slog.Logger
	srv    *http.Server
	addr   string
}

func NewServer(logger *slog.Logger, cfg *config.Config, router chi.Router) *Server {
	return &Server{
		logger: logger,
		addr:   cfg.HTTP.Addr,
		srv: &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: router,
			// No WriteTimeout: SSE and WebSocket responses are long-lived
			// streams that would be killed by one.
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// Start binds the listener synchronously so a bad address fails startup, then
// serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.logger.Info("http server listening", "addr", s.addr)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", "err", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
