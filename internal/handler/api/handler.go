// Package api implements the request/response surface of the chat core:
// message send, conversation/room fetch, read-state reconciliation, presence,
// and hub stats.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utc2/chat-delivery-service/internal/adapter/pubsub"
	"github.com/utc2/chat-delivery-service/internal/adapter/store"
	"github.com/utc2/chat-delivery-service/internal/domain/registry"
	"github.com/utc2/chat-delivery-service/internal/service"
)

type Handler struct {
	logger     *slog.Logger
	store      store.MessageStore
	dispatcher pubsub.EventDispatcher
	readstate  service.ReadReconciler
	enricher   service.Enricher
	hub        registry.Hubber
	registry   *prometheus.Registry
}

func NewHandler(
	logger *slog.Logger,
	st store.MessageStore,
	dispatcher pubsub.EventDispatcher,
	readstate service.ReadReconciler,
	enricher service.Enricher,
	hub registry.Hubber,
	promRegistry *prometheus.Registry,
) *Handler {
	return &Handler{
		logger:     logger,
		store:      st,
		dispatcher: dispatcher,
		readstate:  readstate,
		enricher:   enricher,
		hub:        hub,
		registry:   promRegistry,
	}
}

// Routes attaches the authenticated API surface. The caller mounts it behind
// the session middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/messages", h.SendMessage)

	r.Get("/conversations/unread", h.UnreadCounts)
	r.Get("/conversations/{peer}/messages", h.ListConversation)
	r.Get("/conversations/{peer}/unread", h.UnreadCount)
	r.Post("/conversations/{peer}/read", h.MarkConversationRead)

	r.Get("/rooms/{room}/messages", h.ListRoomMessages)
	r.Get("/rooms/{room}/unread", h.UnreadRoomCount)
	r.Post("/rooms/{room}/read", h.MarkRoomRead)

	r.Get("/presence/{identity}", h.Presence)
	r.Get("/stats", h.Stats)
}

// MetricsHandler exposes the Prometheus registry; mounted outside the
// session middleware for the scraper.
func (h *Handler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encoding failed", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, errorResponse{Error: msg})
}
