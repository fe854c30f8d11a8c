package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utc2/chat-delivery-service/infra/server/http/middleware"
	"github.com/utc2/chat-delivery-service/internal/adapter/store"
	"github.com/utc2/chat-delivery-service/internal/domain/registry"
	"github.com/utc2/chat-delivery-service/internal/service"
)

// recordingDispatcher captures publishes instead of touching a transport.
type recordingDispatcher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	topic   string
	payload any
}

func (d *recordingDispatcher) Publish(_ context.Context, topic string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, publishedEvent{topic: topic, payload: payload})
	return nil
}

func (d *recordingDispatcher) Publisher() message.Publisher { return nil }

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.published)
}

type apiFixture struct {
	server     *httptest.Server
	store      *store.Memory
	hub        *registry.Hub
	dispatcher *recordingDispatcher
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	mem := store.NewMemory()
	hub := registry.NewHub()
	dispatcher := &recordingDispatcher{}
	enricher := service.NewNameEnricher(mem)
	readstate := service.NewReadStateService(mem, logger)
	auther := service.NewSessionAuther(mem)

	h := NewHandler(logger, mem, dispatcher, readstate, enricher, hub, prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(auther, logger))
		r.Route("/api", h.Routes)
	})
	r.Handle("/metrics", h.MetricsHandler())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, store: mem, hub: hub, dispatcher: dispatcher}
}

func (f *apiFixture) seedUser(t *testing.T, name, token string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.store.SeedUser(id, name)
	f.store.SeedSession(token, id)
	return id
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSendMessagePersistsAndPublishes(t *testing.T) {
	f := newAPIFixture(t)
	_ = f.seedUser(t, "Alice", "tok-alice")
	bob := f.seedUser(t, "Bob", "tok-bob")

	resp := f.do(t, http.MethodPost, "/api/messages", "tok-alice", map[string]string{
		"receiver_id": bob.String(),
		"body":        "hello bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[map[string]any](t, resp)
	assert.Equal(t, "hello bob", created["body"])
	assert.NotEmpty(t, created["id"])

	require.Equal(t, 1, f.dispatcher.count())
	assert.Equal(t, "chat.message.created.v1", f.dispatcher.published[0].topic)
}

func TestSendMessageValidation(t *testing.T) {
	f := newAPIFixture(t)
	_ = f.seedUser(t, "Alice", "tok-alice")
	bob := f.seedUser(t, "Bob", "tok-bob")

	cases := []struct {
		name string
		body map[string]string
	}{
		{"empty body", map[string]string{"receiver_id": bob.String(), "body": "   "}},
		{"no addressee", map[string]string{"body": "hi"}},
		{"both addressees", map[string]string{"receiver_id": bob.String(), "room_id": uuid.NewString(), "body": "hi"}},
		{"bad receiver id", map[string]string{"receiver_id": "not-a-uuid", "body": "hi"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/messages", "tok-alice", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	assert.Zero(t, f.dispatcher.count(), "rejected sends must not publish")
}

func TestSendMessageRequiresSession(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodPost, "/api/messages", "", map[string]string{"body": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListConversationResolvesSenderNames(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.seedUser(t, "Alice", "tok-alice")
	bob := f.seedUser(t, "Bob", "tok-bob")

	for i := 0; i < 3; i++ {
		_, err := f.store.Persist(context.Background(), store.PersistInput{
			SenderID:   bob,
			ReceiverID: &alice,
			Body:       fmt.Sprintf("msg %d", i),
			Now:        time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	resp := f.do(t, http.MethodGet, "/api/conversations/"+bob.String()+"/messages", "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := decode[struct {
		Messages []struct {
			Body       string `json:"body"`
			SenderName string `json:"sender_name"`
		} `json:"messages"`
	}](t, resp)

	require.Len(t, page.Messages, 3)
	assert.Equal(t, "msg 0", page.Messages[0].Body, "history is oldest first")
	for _, m := range page.Messages {
		assert.Equal(t, "Bob", m.SenderName)
	}
}

func TestUnreadAndMarkReadRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.seedUser(t, "Alice", "tok-alice")
	bob := f.seedUser(t, "Bob", "tok-bob")

	for i := 0; i < 2; i++ {
		_, err := f.store.Persist(context.Background(), store.PersistInput{
			SenderID:   bob,
			ReceiverID: &alice,
			Body:       "unread",
			Now:        time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	resp := f.do(t, http.MethodGet, "/api/conversations/"+bob.String()+"/unread", "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[unreadResponse](t, resp).UnreadCount)

	resp = f.do(t, http.MethodPost, "/api/conversations/"+bob.String()+"/read", "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decode[markReadResponse](t, resp).Updated)

	// Idempotent: the repeat flips nothing.
	resp = f.do(t, http.MethodPost, "/api/conversations/"+bob.String()+"/read", "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[markReadResponse](t, resp).Updated)

	resp = f.do(t, http.MethodGet, "/api/conversations/"+bob.String()+"/unread", "tok-alice", nil)
	assert.Zero(t, decode[unreadResponse](t, resp).UnreadCount)
}

func TestUnreadCountsAggregatePerPeer(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.seedUser(t, "Alice", "tok-alice")
	bob := f.seedUser(t, "Bob", "tok-bob")
	carol := f.seedUser(t, "Carol", "tok-carol")

	for _, sender := range []uuid.UUID{bob, bob, carol} {
		_, err := f.store.Persist(context.Background(), store.PersistInput{
			SenderID:   sender,
			ReceiverID: &alice,
			Body:       "unread",
			Now:        time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	resp := f.do(t, http.MethodGet, "/api/conversations/unread", "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	counts := decode[unreadCountsResponse](t, resp)
	assert.Equal(t, map[string]int{bob.String(): 2, carol.String(): 1}, counts.UnreadCounts)
}

func TestPresenceReflectsRegistry(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.seedUser(t, "Alice", "tok-alice")
	bob := f.seedUser(t, "Bob", "tok-bob")

	conn := registry.NewConnector(context.Background(), bob, 8)
	f.hub.Register(bob, conn)

	resp := f.do(t, http.MethodGet, "/api/presence/"+bob.String(), "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[presenceResponse](t, resp).Online)

	resp = f.do(t, http.MethodGet, "/api/presence/"+alice.String(), "tok-bob", nil)
	assert.False(t, decode[presenceResponse](t, resp).Online)
}

func TestStatsSnapshot(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.seedUser(t, "Alice", "tok-alice")

	conn := registry.NewConnector(context.Background(), alice, 8)
	f.hub.Register(alice, conn)

	resp := f.do(t, http.MethodGet, "/api/stats", "tok-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decode[statsResponse](t, resp)
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, uint64(1), stats.Registered)
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
