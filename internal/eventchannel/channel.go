package eventchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"chat-client/internal/observability"
)

var (
	// ErrUnauthenticated means Connect was refused because no bearer
	// credential is available. The caller decides when to retry.
	ErrUnauthenticated = errors.New("event channel: no credential available")
	// ErrNotConnected means an outbound emit was dropped because the
	// transport is down. There is no outbound queue; delivery of
	// client-to-server events is at most once.
	ErrNotConnected = errors.New("event channel: not connected")
)

// EventReconnected is dispatched locally after each successful reconnect so
// subscribers can observe transport recovery explicitly. It never arrives
// from the backend.
const EventReconnected = "channel.reconnected"

// Handler receives the raw data payload of one event frame.
type Handler func(payload json.RawMessage)

// CredentialSource yields the bearer token presented on the websocket dial.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// frame is the wire shape of every channel event, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Channel wraps a single lazily-connected, auto-reconnecting websocket behind
// a subscribe/unsubscribe API. The listener registry outlives the transport:
// Disconnect tears down the socket but keeps every registered handler, and
// dispatch always consults the live registry, so subscribers survive
// connect/disconnect cycles without re-subscribing.
type Channel struct {
	wsURL      string
	creds      CredentialSource
	maxRetries int
	retryWait  time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    int
	listeners map[string]map[int]Handler
}

// New builds a disconnected channel. maxRetries bounds the reconnect attempts
// after a transport drop; retryWait is the fixed backoff between them.
func New(wsURL string, creds CredentialSource, maxRetries int, retryWait time.Duration) *Channel {
	return &Channel{
		wsURL:      wsURL,
		creds:      creds,
		maxRetries: maxRetries,
		retryWait:  retryWait,
		listeners:  make(map[string]map[int]Handler),
	}
}

// Connect dials the transport. Calling it while connected is a no-op. When no
// credential is available the connect is refused with ErrUnauthenticated and
// logged; nothing retries it automatically.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token, err := c.creds.AccessToken(ctx)
	if err != nil || token == "" {
		log.Warn().Msg("event channel connect refused: not authenticated")
		return ErrUnauthenticated
	}

	ctx, span := otel.Tracer("chat-client/eventchannel").Start(ctx, "channel.handshake")
	defer span.End()

	dialURL, err := withToken(c.wsURL, token)
	if err != nil {
		return fmt.Errorf("build dial url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("dial event channel: %w", err)
	}

	c.mu.Lock()
	if c.connected {
		// Lost the race against a concurrent Connect.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	observability.SetChannelConnected(true)
	log.Info().Str("conn_id", uuid.NewString()).Msg("event channel connected")

	go c.readLoop(conn)
	return nil
}

// Disconnect tears down the transport. Registered listeners are kept so a
// later Connect serves them again.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		observability.SetChannelConnected(false)
		log.Info().Msg("event channel disconnected")
	}
}

// On registers a handler for an event name and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (c *Channel) On(event string, fn Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.listeners[event][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if handlers, ok := c.listeners[event]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(c.listeners, event)
			}
		}
	}
}

// Emit sends an event to the backend. When the transport is down the event is
// dropped with a warning; there is no outbound queue.
func (c *Channel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode emit payload: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		observability.IncDroppedEmit()
		log.Warn().Str("event", event).Msg("emit dropped: event channel not connected")
		return ErrNotConnected
	}

	observability.IncChannelEvent("out", event)
	return c.conn.WriteJSON(frame{Event: event, Data: data})
}

// Connected reports whether a live transport is currently held.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			dropped := c.conn == conn
			if dropped {
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()

			if !dropped {
				// Explicit Disconnect already cleaned up; do not reconnect.
				return
			}

			observability.SetChannelConnected(false)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Msg("event channel closed by peer")
			} else {
				log.Warn().Err(err).Msg("event channel dropped")
			}
			go c.reconnect()
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			log.Debug().Msg("discarding malformed channel frame")
			continue
		}
		observability.IncChannelEvent("in", f.Event)
		c.dispatch(f.Event, f.Data)
	}
}

// dispatch invokes every handler registered for the event exactly once, from
// a snapshot so handlers may unsubscribe themselves.
func (c *Channel) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.listeners[event]))
	for _, fn := range c.listeners[event] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
}

func (c *Channel) reconnect() {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryWait), uint64(c.maxRetries))
	err := backoff.Retry(func() error {
		err := c.Connect(context.Background())
		if errors.Is(err, ErrUnauthenticated) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		log.Error().Err(err).Int("retries", c.maxRetries).Msg("event channel reconnect gave up")
		return
	}

	observability.IncChannelReconnect()
	log.Info().Msg("event channel reconnected")
	// Redelivery of events that were in flight during the drop is possible;
	// consumers deduplicate by server id.
	c.dispatch(EventReconnected, nil)
}

func withToken(wsURL, token string) (string, error) {
	parsed, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
