package service

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/utc2/chat-delivery-service/internal/adapter/store"
)

// ErrUnauthenticated is returned for absent or invalid credentials. Auth
// fails closed before any registry interaction.
var ErrUnauthenticated = errors.New("service: unauthenticated")

// SessionCookie is the portal's session cookie name.
const SessionCookie = "portal_session"

// Auther identifies the authenticated user behind a request.
type Auther interface {
	Identify(r *http.Request) (uuid.UUID, error)
}

// Interface guard
var _ Auther = (*SessionAuther)(nil)

// SessionAuther resolves bearer tokens against the portal's session store.
// Credentials are accepted from the Authorization header, the session cookie,
// or, for EventSource clients that can set neither, the access_token query
// parameter. Resolved sessions are kept in an expiring LRU so steady-state
// requests skip the store round trip.
type SessionAuther struct {
	sessions store.SessionStore
	cache    *lru.Cache[string, cachedSession]
	ttl      time.Duration
}

type cachedSession struct {
	identity  uuid.UUID
	expiresAt time.Time
}

func NewSessionAuther(sessions store.SessionStore) *SessionAuther {
	cache, _ := lru.New[string, cachedSession](4096)
	return &SessionAuther{
		sessions: sessions,
		cache:    cache,
		ttl:      time.Minute,
	}
}

func (a *SessionAuther) Identify(r *http.Request) (uuid.UUID, error) {
	token := extractToken(r)
	if token == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	if cached, ok := a.cache.Get(token); ok && time.Now().Before(cached.expiresAt) {
		return cached.identity, nil
	}

	identity, err := a.sessions.ResolveSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			// Invalid tokens are not negative-cached: a login racing this
			// request must succeed on its next try.
			return uuid.Nil, ErrUnauthenticated
		}
		return uuid.Nil, err
	}

	a.cache.Add(token, cachedSession{identity: identity, expiresAt: time.Now().Add(a.ttl)})
	return identity, nil
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("access_token")
}
