// Package notify is the real-time notification socket client.
//
// A Client owns at most one live connection. Frames on the wire are JSON
// objects {"event": name, "data": payload}. "notification" events are
// decoded, dispatched to the handler registered for their kind and then to
// every subscriber.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/model"
)

// EventNotification is the event name carrying model.Notification payloads.
const EventNotification = "notification"

const (
	defaultReconnects = 5
	defaultDelay      = time.Second
	maxDelay          = 30 * time.Second
	handshakeTimeout  = 10 * time.Second
)

// ErrNotConnected is returned by Send when there is no live socket.
const ErrNotConnected = errors.ConstError("notify: not connected")

// Frame is one message on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler consumes a decoded notification.
type Handler func(model.Notification)

// EventHandler consumes the raw payload of a named event.
type EventHandler func(data json.RawMessage)

// Config configures a Client.
type Config struct {
	// URL is the socket endpoint, e.g. ws://host/socket.
	URL string
	// Token authenticates the handshake.
	Token string
	// Reconnects caps automatic reconnection attempts after a transport
	// drop. Zero means 5; negative disables reconnection.
	Reconnects int
	// ReconnectDelay is the first backoff delay; it doubles per attempt.
	ReconnectDelay time.Duration

	Logger *zap.Logger
	Clock  clock.Clock
	Dialer *websocket.Dialer
}

// Client is a notification socket client bound to one token.
type Client struct {
	cfg Config
	log *zap.Logger

	mu  sync.Mutex
	cur *conn

	writeMu sync.Mutex

	hmu       sync.RWMutex
	kinds     map[model.NotificationType]Handler
	subs      map[int]Handler
	listeners map[string]map[int]EventHandler
	nextID    int
}

// conn is one connection lifetime, spanning any reconnects.
type conn struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a disconnected client.
func New(cfg Config) *Client {
	if cfg.Reconnects == 0 {
		cfg.Reconnects = defaultReconnects
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}

	c := &Client{
		cfg:       cfg,
		log:       cfg.Logger.Named("notify"),
		kinds:     make(map[model.NotificationType]Handler, len(model.NotificationTypes)),
		subs:      make(map[int]Handler),
		listeners: make(map[string]map[int]EventHandler),
	}
	for _, kind := range model.NotificationTypes {
		c.kinds[kind] = c.logHandler(kind)
	}
	return c
}

// Connect opens the socket. It is a no-op while a connection exists. The
// handshake runs without holding the client lock; when concurrent calls
// race, the first to finish wins and the others close their socket.
func (c *Client) Connect(ctx context.Context) error {
	if c.Connected() {
		return nil
	}

	ws, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		_ = ws.Close()
		return nil
	}

	sctx, cancel := context.WithCancel(context.Background())
	cur := &conn{ws: ws, ctx: sctx, cancel: cancel, done: make(chan struct{})}
	c.cur = cur
	go c.run(cur)

	c.log.Debug("connected", zap.String("url", c.cfg.URL))
	return nil
}

// Connected reports whether a connection lifetime is active.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// Disconnect closes the socket, stops reconnection and waits for the read
// loop to exit. A later Connect opens a fresh connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cur := c.cur
	if cur != nil {
		cur.cancel()
		if cur.ws != nil {
			_ = cur.ws.Close()
		}
	}
	c.mu.Unlock()

	if cur != nil {
		<-cur.done
	}
}

// Send writes an event frame.
func (c *Client) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Annotatef(err, "encoding %s", event)
	}

	c.mu.Lock()
	var ws *websocket.Conn
	if c.cur != nil {
		ws = c.cur.ws
	}
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return errors.Trace(ws.WriteJSON(Frame{Event: event, Data: raw}))
}

// Listen registers handler for a named event and returns a func that
// removes it.
func (c *Client) Listen(event string, handler EventHandler) (remove func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.nextID++
	id := c.nextID
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]EventHandler)
	}
	c.listeners[event][id] = handler
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		delete(c.listeners[event], id)
	}
}

// Subscribe adds a notification consumer. It may be called before or after
// Connect. The returned func unsubscribes.
func (c *Client) Subscribe(handler Handler) (unsubscribe func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = handler
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		delete(c.subs, id)
	}
}

// Handle replaces the per-kind handler for kind. A nil handler restores
// the logging default.
func (c *Client) Handle(kind model.NotificationType, handler Handler) {
	if handler == nil {
		handler = c.logHandler(kind)
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.kinds[kind] = handler
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, errors.NotValidf("socket url %q", c.cfg.URL)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	ws, resp, err := c.cfg.Dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, errors.Unauthorizedf("socket handshake rejected (%d)", resp.StatusCode)
		}
		return nil, errors.Annotate(err, "dialing notification socket")
	}
	return ws, nil
}

// run reads frames for one connection lifetime and reconnects after
// transport drops until attempts are exhausted or Disconnect is called.
func (c *Client) run(cur *conn) {
	defer func() {
		c.mu.Lock()
		if c.cur == cur {
			c.cur = nil
		}
		c.mu.Unlock()
		close(cur.done)
	}()

	for {
		c.mu.Lock()
		ws := cur.ws
		c.mu.Unlock()

		err := c.readLoop(ws)
		_ = ws.Close()
		if cur.ctx.Err() != nil {
			return
		}
		c.log.Warn("socket dropped", zap.Error(err))

		if c.cfg.Reconnects < 0 {
			return
		}
		next, err := c.reconnect(cur)
		if err != nil {
			if cur.ctx.Err() == nil {
				c.log.Error("giving up on notification socket", zap.Error(err))
			}
			return
		}

		c.mu.Lock()
		if cur.ctx.Err() != nil {
			c.mu.Unlock()
			_ = next.Close()
			return
		}
		cur.ws = next
		c.mu.Unlock()
		c.log.Info("reconnected")
	}
}

func (c *Client) reconnect(cur *conn) (*websocket.Conn, error) {
	var ws *websocket.Conn
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			conn, err := c.dial(cur.ctx)
			if err != nil {
				return err
			}
			ws = conn
			return nil
		},
		IsFatalError: func(err error) bool {
			return errors.Is(err, errors.Unauthorized)
		},
		NotifyFunc: func(err error, attempt int) {
			c.log.Debug("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		},
		Attempts:    c.cfg.Reconnects,
		Delay:       c.cfg.ReconnectDelay,
		MaxDelay:    maxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.cfg.Clock,
		Stop:        cur.ctx.Done(),
	})
	if err != nil {
		return nil, errors.Trace(retry.LastError(err))
	}
	return ws, nil
}

// readLoop returns only on transport errors. Frames that do not decode are
// logged and skipped.
func (c *Client) readLoop(ws *websocket.Conn) error {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f Frame) {
	if f.Event == EventNotification {
		var n model.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			c.log.Warn("undecodable notification", zap.Error(err))
		} else {
			n.Type = model.ParseNotificationType(string(n.Type))
			if n.ReceivedAt.IsZero() {
				n.ReceivedAt = c.cfg.Clock.Now()
			}
			c.notify(n)
		}
	}

	c.hmu.RLock()
	handlers := make([]EventHandler, 0, len(c.listeners[f.Event]))
	for _, h := range c.listeners[f.Event] {
		handlers = append(handlers, h)
	}
	c.hmu.RUnlock()
	for _, h := range handlers {
		h(f.Data)
	}
}

func (c *Client) notify(n model.Notification) {
	c.hmu.RLock()
	kind := c.kinds[n.Type]
	subs := make([]Handler, 0, len(c.subs))
	for _, h := range c.subs {
		subs = append(subs, h)
	}
	c.hmu.RUnlock()

	if kind != nil {
		kind(n)
	}
	for _, h := range subs {
		h(n)
	}
}

func (c *Client) logHandler(kind model.NotificationType) Handler {
	msg := string(kind) + " notification"
	return func(n model.Notification) {
		c.log.Info(msg,
			zap.String("kind", string(n.Type)),
			zap.String("message", n.Message),
			zap.String("user_id", n.UserID),
		)
	}
}
