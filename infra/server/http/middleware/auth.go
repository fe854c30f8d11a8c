// Package middleware carries the HTTP cross-cutting concerns shared by the
// API and push transports.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/utc2/chat-delivery-service/internal/service"
)

type contextKey string

const identityKey contextKey = "identity"

// RequireSession validates the caller's credentials before any registry
// interaction and injects the identity into the request context. It fails
// closed: absent or invalid credentials are rejected, never retried.
func RequireSession(auther service.Auther, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := auther.Identify(r)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					http.Error(w, "unauthenticated", http.StatusUnauthorized)
					return
				}
				logger.Error("session resolution failed", "err", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom extracts the authenticated identity injected by
// RequireSession.
func IdentityFrom(ctx context.Context) (uuid.UUID, bool) {
	identity, ok := ctx.Value(identityKey).(uuid.UUID)
	return identity, ok
}
