// Package client is the Go client for the chat delivery service. It owns the
// reconnection state machine: one goroutine dials, reads, and redials with a
// fixed delay until its context is cancelled.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the client's connection lifecycle phase.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	defaultRetryDelay       = 5 * time.Second
	defaultMarkReadDebounce = 400 * time.Millisecond
)

// Options configures a Client. BaseURL and Token are required.
type Options struct {
	// BaseURL is the server's HTTP base, e.g. "http://portal.local:8086".
	BaseURL string
	// Token is the session credential, sent as a bearer token.
	Token string

	// Identity is the caller's own user id. Setting it lets REST-synced
	// history scope correctly before the first push handshake; the
	// handshake confirms (and overrides) it afterwards.
	Identity string

	// RetryDelay is the fixed pause between reconnect attempts. The delay
	// never backs off and the attempts never stop while the context lives.
	RetryDelay time.Duration

	// MarkReadDebounce batches mark-read calls for the open conversation so
	// a burst of arrivals produces one request.
	MarkReadDebounce time.Duration

	Logger     *slog.Logger
	HTTPClient *http.Client

	// OnStateChange, if set, is called on every lifecycle transition.
	OnStateChange func(State)
	// OnMessage, if set, is called for every newly merged message. Replays
	// of already-seen ids do not fire it.
	OnMessage func(Message)
}

// Event is the wire shape pushed by the server.
type Event struct {
	Type string `json:"type"`

	Identity      string `json:"identity,omitempty"`
	ConnectionID  string `json:"connection_id,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty"`

	Data *Message `json:"data,omitempty"`
}

// Message mirrors the server's message wire shape.
type Message struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"created_at"`
	Read       bool   `json:"read"`
}

// scope returns the conversation key a message belongs to: the room id for
// room messages, otherwise the direct peer relative to identity.
func (m Message) scope(identity string) string {
	if m.RoomID != "" {
		return "room:" + m.RoomID
	}
	if m.SenderID == identity {
		return "peer:" + m.ReceiverID
	}
	return "peer:" + m.SenderID
}

// Client maintains one push connection and a local, id-deduplicated view of
// conversations. All exported methods are safe for concurrent use.
type Client struct {
	opts  Options
	state atomic.Int32

	mu            sync.Mutex
	identity      string
	conversations map[string][]Message
	openScope     string
	markReadTimer *time.Timer
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if opts.Token == "" {
		return nil, errors.New("client: Token is required")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.MarkReadDebounce <= 0 {
		opts.MarkReadDebounce = defaultMarkReadDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		opts:          opts,
		identity:      opts.Identity,
		conversations: make(map[string][]Message),
	}, nil
}

// State reports the current lifecycle phase.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Run drives the connection until ctx is cancelled. Every connection loss,
// whatever the cause, leads back through Connecting after the fixed retry
// delay. Run always returns ctx's error.
func (c *Client) Run(ctx context.Context) error {
	defer c.teardown()

	for {
		c.setState(Connecting)

		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(Disconnected)
			if !c.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		// Still Connecting: the lifecycle reaches Connected only when the
		// server's handshake event arrives on the stream.
		c.readLoop(ctx, conn)
		conn.Close()
		c.setState(Disconnected)

		if !c.sleep(ctx) {
			return ctx.Err()
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: bad base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.opts.Logger.Debug("dial failed", "url", u.String(), "err", err)
		return nil, err
	}
	return conn, nil
}

// readLoop consumes events until the connection breaks or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.opts.Logger.Debug("connection lost", "err", err)
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.opts.Logger.Warn("undecodable event", "err", err)
			continue
		}
		c.handleEvent(ev)
	}
}

func (c *Client) handleEvent(ev Event) {
	switch ev.Type {
	case "connected":
		c.mu.Lock()
		c.identity = ev.Identity
		c.mu.Unlock()
		c.setState(Connected)
		c.opts.Logger.Info("handshake complete", "identity", ev.Identity, "conn_id", ev.ConnectionID)

	case "ping":
		// Liveness only; nothing to do.

	case "message":
		if ev.Data == nil {
			return
		}
		c.mergeOne(*ev.Data)

	default:
		c.opts.Logger.Debug("ignoring unknown event type", "type", ev.Type)
	}
}

// mergeOne folds a message into the local view. Merging is keyed by message
// id, so a replay after reconnect is a no-op.
func (c *Client) mergeOne(m Message) {
	c.mu.Lock()
	identity := c.identity
	scope := m.scope(identity)

	merged, added := mergeByID(c.conversations[scope], m)
	c.conversations[scope] = merged

	notifyRead := added && scope == c.openScope && c.openScope != ""
	c.mu.Unlock()

	if !added {
		return
	}
	if c.opts.OnMessage != nil {
		c.opts.OnMessage(m)
	}
	if notifyRead {
		c.scheduleMarkRead(scope)
	}
}

// Messages returns the merged view of one conversation, oldest first. The
// scope is "peer:<uuid>" or "room:<uuid>".
func (c *Client) Messages(scope string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.conversations[scope]))
	copy(out, c.conversations[scope])
	return out
}

// OpenConversation marks one conversation as on-screen. Arrivals for it are
// auto-acknowledged with a debounced mark-read. An empty scope closes the
// view.
func (c *Client) OpenConversation(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.openScope = scope
	if c.markReadTimer != nil {
		c.markReadTimer.Stop()
		c.markReadTimer = nil
	}
}

// SyncConversation fetches the server-side history for a direct peer and
// merges it locally. Safe to call after every reconnect; duplicates are
// dropped by id.
func (c *Client) SyncConversation(ctx context.Context, peer string) error {
	var page struct {
		Messages []Message `json:"messages"`
	}
	if err := c.getJSON(ctx, "/api/conversations/"+peer+"/messages", &page); err != nil {
		return err
	}
	c.mergeMany(page.Messages)
	return nil
}

// SyncRoom fetches and merges the room history.
func (c *Client) SyncRoom(ctx context.Context, room string) error {
	var page struct {
		Messages []Message `json:"messages"`
	}
	if err := c.getJSON(ctx, "/api/rooms/"+room+"/messages", &page); err != nil {
		return err
	}
	c.mergeMany(page.Messages)
	return nil
}

func (c *Client) mergeMany(msgs []Message) {
	for _, m := range msgs {
		c.mergeOne(m)
	}
}

// MarkRead acknowledges a conversation immediately, bypassing the debounce.
func (c *Client) MarkRead(ctx context.Context, scope string) error {
	path, ok := markReadPath(scope)
	if !ok {
		return fmt.Errorf("client: bad scope %q", scope)
	}
	return c.postJSON(ctx, path)
}

func markReadPath(scope string) (string, bool) {
	switch {
	case strings.HasPrefix(scope, "peer:"):
		return "/api/conversations/" + strings.TrimPrefix(scope, "peer:") + "/read", true
	case strings.HasPrefix(scope, "room:"):
		return "/api/rooms/" + strings.TrimPrefix(scope, "room:") + "/read", true
	default:
		return "", false
	}
}

func (c *Client) scheduleMarkRead(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.markReadTimer != nil {
		c.markReadTimer.Stop()
	}
	c.markReadTimer = time.AfterFunc(c.opts.MarkReadDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.MarkRead(ctx, scope); err != nil {
			c.opts.Logger.Warn("auto mark-read failed", "scope", scope, "err", err)
		}
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: %s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: %s returned %s", path, resp.Status)
	}
	return nil
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// sleep waits the fixed retry delay. It reports false when ctx ended first.
func (c *Client) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.opts.RetryDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) teardown() {
	c.setState(Disconnected)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markReadTimer != nil {
		c.markReadTimer.Stop()
		c.markReadTimer = nil
	}
}
