// Package searchclient maintains the persistent search channel used for
// near-real-time profile name search. The general relay query path cannot do
// substring search, so this client speaks the cache protocol instead:
//
//	-> ["REQ", corrID, {"cache": ["user_search", {"query": q, "limit": n}]}]
//	<- ["EVENT", corrID, <kind-0 event>]  (zero or more)
//	<- ["EOSE", corrID]
//
// One long-lived websocket is shared per client. On unexpected close the
// client reconnects with linear backoff, rotating through the configured
// endpoints; every pending request is failed synchronously so no caller is
// left waiting on a dead channel.
package searchclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/profile"
)

// State describes the channel lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "disconnected"
	}
}

// IdentityFetcher resolves a single profile by exact key; the relay pool
// satisfies this.
type IdentityFetcher interface {
	QuerySingle(ctx context.Context, filter nostr.Filter) *nostr.Event
}

const (
	defaultRequestTimeout = 5 * time.Second
	defaultBackoffBase    = 500 * time.Millisecond
	defaultMaxAttempts    = 6
	minQueryLength        = 2
)

type pendingReq struct {
	profiles []profile.Profile
	done     chan error // buffered; receives exactly one resolution
}

// Client is the profile search channel. Construct with New, open with
// Connect, and Close when done; it is safe for concurrent use.
type Client struct {
	endpoints      []string
	fetcher        IdentityFetcher
	log            *slog.Logger
	requestTimeout time.Duration
	backoffBase    time.Duration
	maxAttempts    int

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempt  int
	epIndex  int
	pending  map[string]*pendingReq
	closed   bool
	writeMu  sync.Mutex
	connGen  int // invalidates stale read loops and reconnectors
}

// Option configures a Client.
type Option func(*Client)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithBackoff overrides the reconnect base delay and attempt bound.
func WithBackoff(base time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.maxAttempts = maxAttempts
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client over an ordered list of equivalent endpoints and an
// identity fetcher for exact lookups. The channel is not dialed until
// Connect is called.
func New(endpoints []string, fetcher IdentityFetcher, opts ...Option) *Client {
	c := &Client{
		endpoints:      endpoints,
		fetcher:        fetcher,
		log:            slog.Default(),
		requestTimeout: defaultRequestTimeout,
		backoffBase:    defaultBackoffBase,
		maxAttempts:    defaultMaxAttempts,
		pending:        make(map[string]*pendingReq),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the current endpoint and starts the read loop. It is a no-op
// when the channel is already open or connecting.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperr.ErrClosed
	}
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	if len(c.endpoints) == 0 {
		c.mu.Unlock()
		return fmt.Errorf("searchclient: no endpoints configured")
	}
	c.state = Connecting
	endpoint := c.endpoints[c.epIndex%len(c.endpoints)]
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if conn != nil {
			conn.Close()
		}
		return apperr.ErrClosed
	}
	if err != nil {
		c.state = Disconnected
		c.epIndex++
		return fmt.Errorf("searchclient: dial %s: %w", endpoint, err)
	}

	c.conn = conn
	c.state = Open
	c.attempt = 0
	c.connGen++
	gen := c.connGen
	c.log.Info("search channel open", slog.String("endpoint", endpoint))
	go c.readLoop(conn, gen)
	return nil
}

// Close shuts the channel down and aborts every in-flight request.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.failPendingLocked(apperr.ErrClosed)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Search sends a correlated user_search request and accumulates streamed
// profile records until the end-of-results signal or the request timeout.
// It fails fast with apperr.ErrNotConnected when the channel is not open;
// there is no implicit queueing. Text shorter than two characters returns an
// empty result without touching the network.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]profile.Profile, error) {
	if len(text) < minQueryLength {
		return []profile.Profile{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, apperr.ErrClosed
	}
	if c.state != Open {
		// Exhausted reconnectors stop on their own; a new request is the
		// signal to try again from a clean slate.
		if c.state == Disconnected && c.attempt >= c.maxAttempts {
			c.attempt = 0
			go c.reconnect(c.connGen)
		}
		c.mu.Unlock()
		return nil, apperr.ErrNotConnected
	}
	conn := c.conn
	id := uuid.NewString()
	req := &pendingReq{done: make(chan error, 1)}
	c.pending[id] = req
	c.mu.Unlock()

	frame := []any{"REQ", id, map[string]any{
		"cache": []any{"user_search", map[string]any{"query": text, "limit": limit}},
	}}
	if err := c.writeJSON(conn, frame); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("searchclient: send request: %w", err)
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case err := <-req.done:
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		profiles := req.profiles
		c.mu.Unlock()
		if profiles == nil {
			profiles = []profile.Profile{}
		}
		return profiles, nil
	case <-timer.C:
		c.abandon(conn, id)
		return nil, fmt.Errorf("searchclient: search %q: %w", text, apperr.ErrTimeout)
	case <-ctx.Done():
		c.abandon(conn, id)
		return nil, ctx.Err()
	}
}

// FetchByIdentity resolves a profile by exact key through the relay pool
// (not the search channel). Returns nil when no record exists or its payload
// is unparseable.
func (c *Client) FetchByIdentity(ctx context.Context, pubkey string) (*profile.Profile, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("searchclient: no identity fetcher configured")
	}
	evt := c.fetcher.QuerySingle(ctx, nostr.Filter{
		Kinds:   []int{nostr.KindProfileMetadata},
		Authors: []string{pubkey},
	})
	if evt == nil {
		return nil, nil
	}
	return profile.FromEvent(evt), nil
}

// abandon removes a timed-out or cancelled request and tells the service to
// stop streaming for it.
func (c *Client) abandon(conn *websocket.Conn, id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
	_ = c.writeJSON(conn, []any{"CLOSE", id})
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// readLoop owns the socket's read side for one connection generation. Frames
// are dispatched to pending requests by correlation id; requests never share
// buffers, so concurrent searches cannot cross-contaminate.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, gen, err)
			return
		}

		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil || len(arr) < 2 {
			continue // malformed frame: diagnostic-only
		}
		var label, id string
		if json.Unmarshal(arr[0], &label) != nil || json.Unmarshal(arr[1], &id) != nil {
			continue
		}

		switch label {
		case "EVENT":
			if len(arr) < 3 {
				continue
			}
			var evt nostr.Event
			if err := json.Unmarshal(arr[2], &evt); err != nil {
				c.log.Debug("search channel: malformed event frame", slog.String("error", err.Error()))
				continue
			}
			p := profile.FromEvent(&evt)
			if p == nil {
				continue
			}
			c.mu.Lock()
			if req, ok := c.pending[id]; ok {
				req.profiles = append(req.profiles, *p)
			}
			c.mu.Unlock()

		case "EOSE":
			c.mu.Lock()
			req, ok := c.pending[id]
			if ok {
				delete(c.pending, id)
			}
			c.mu.Unlock()
			if ok {
				req.done <- nil
			}
		}
	}
}

// handleDisconnect runs when the read loop dies. Every pending request is
// failed right here so no promise leaks, then a reconnector starts.
func (c *Client) handleDisconnect(conn *websocket.Conn, gen int, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.closed || gen != c.connGen {
		c.mu.Unlock()
		return
	}
	c.state = Disconnected
	c.conn = nil
	c.failPendingLocked(fmt.Errorf("searchclient: channel lost: %w", apperr.ErrNotConnected))
	gen = c.connGen
	c.mu.Unlock()

	c.log.Warn("search channel lost", slog.String("error", cause.Error()))
	go c.reconnect(gen)
}

// reconnect retries Connect with a linearly increasing delay (attempt × base),
// rotating endpoints, until the bound is hit or the channel opens.
func (c *Client) reconnect(gen int) {
	for {
		c.mu.Lock()
		if c.closed || gen != c.connGen || c.state != Disconnected {
			c.mu.Unlock()
			return
		}
		if c.attempt >= c.maxAttempts {
			c.mu.Unlock()
			c.log.Warn("search channel: reconnect attempts exhausted")
			return
		}
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		time.Sleep(time.Duration(attempt) * c.backoffBase)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		c.log.Debug("search channel: reconnect failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
}

func (c *Client) failPendingLocked(err error) {
	for id, req := range c.pending {
		delete(c.pending, id)
		req.done <- err
	}
}
