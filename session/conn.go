package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/phanxgames/vista/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20 // tour snapshots can be large

	defaultInboxSize = 256
	defaultEventSize = 32
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("session: connection closed")

// Status is the connection lifecycle state.
type Status uint8

const (
	StatusIdle         Status = iota // Run not started
	StatusConnecting                 // dialing, possibly between retries
	StatusOpen                       // connected; queued actions are flushed
	StatusReconnecting               // connection lost; retrying
	StatusGaveUp                     // retries exhausted; show a persistent banner
	StatusClosed                     // Close called or context cancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusReconnecting:
		return "reconnecting"
	case StatusGaveUp:
		return "gave_up"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event reports a status change.
type Event struct {
	Status  Status
	Attempt int
	Err     error
}

// Config configures a Conn.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:1112/connect.
	URL string
	// MaxAttempts bounds consecutive failed dials before giving up.
	MaxAttempts int
	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Header is sent with the upgrade request (cookies for the session).
	Header http.Header
	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// OnOpen returns actions sent first on every new connection, ahead of
	// anything already queued (e.g. re-opening the tour for editing).
	OnOpen func() []protocol.Envelope
	Logger zerolog.Logger
}

// Conn is a reconnecting websocket session.
type Conn struct {
	cfg    Config
	log    zerolog.Logger
	dialer *websocket.Dialer

	inbox  chan protocol.Message
	events chan Event

	mu     sync.Mutex
	queue  [][]byte
	status Status
	closed bool
	cancel context.CancelFunc
	wake   chan struct{}
}

// New returns an idle Conn. Call Run to connect.
func New(cfg Config) *Conn {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Conn{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "session").Str("session_id", uuid.NewString()).Logger(),
		dialer: dialer,
		inbox:  make(chan protocol.Message, defaultInboxSize),
		events: make(chan Event, defaultEventSize),
		wake:   make(chan struct{}, 1),
	}
}

// Inbox delivers decoded push messages in arrival order.
func (c *Conn) Inbox() <-chan protocol.Message { return c.inbox }

// Events delivers status changes. Events are dropped if nobody reads them;
// Status always reports the latest state.
func (c *Conn) Events() <-chan Event { return c.events }

// Status returns the current lifecycle state.
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Pending returns the number of queued, unsent actions.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Send encodes env and queues it for delivery. It never blocks on the
// network.
func (c *Conn) Send(env protocol.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Action, err)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, raw)
	c.mu.Unlock()
	c.signal()
	return nil
}

// Close stops Run and rejects further sends.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run connects and keeps the session alive until ctx is cancelled, Close is
// called, or MaxAttempts consecutive dials fail. Giving up is reported as
// StatusGaveUp and a non-nil error.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.cancel = cancel
	c.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)

	c.setStatus(StatusConnecting, 0, nil)
	for {
		ws, err := c.dial(ctx, policy)
		if err != nil {
			if ctx.Err() != nil {
				c.setStatus(StatusClosed, 0, nil)
				return nil
			}
			c.setStatus(StatusGaveUp, c.cfg.MaxAttempts, err)
			return fmt.Errorf("session: giving up after %d attempts: %w", c.cfg.MaxAttempts, err)
		}

		c.setStatus(StatusOpen, 0, nil)
		err = c.serve(ctx, ws)
		if ctx.Err() != nil {
			c.setStatus(StatusClosed, 0, nil)
			return nil
		}
		c.log.Warn().Err(err).Msg("connection lost")
		c.setStatus(StatusReconnecting, 0, err)
	}
}

func (c *Conn) dial(ctx context.Context, policy backoff.BackOff) (*websocket.Conn, error) {
	var ws *websocket.Conn
	attempt := 0
	op := func() error {
		attempt++
		conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return err
		}
		ws = conn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("dial failed")
		c.setStatus(StatusReconnecting, attempt, err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	c.log.Info().Str("url", c.cfg.URL).Int("attempt", attempt).Msg("connected")
	return ws, nil
}

// serve runs the read and write pumps until either fails.
func (c *Conn) serve(ctx context.Context, ws *websocket.Conn) error {
	if c.cfg.OnOpen != nil {
		var first [][]byte
		for _, env := range c.cfg.OnOpen() {
			raw, err := env.Marshal()
			if err != nil {
				return fmt.Errorf("encode %s: %w", env.Action, err)
			}
			first = append(first, raw)
		}
		c.mu.Lock()
		c.queue = append(first, c.queue...)
		c.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx, ws) })
	g.Go(func() error { return c.writePump(gctx, ws) })
	g.Go(func() error {
		<-gctx.Done()
		_ = ws.Close() // unblocks the read pump
		return nil
	})
	return g.Wait()
}

func (c *Conn) readPump(ctx context.Context, ws *websocket.Conn) error {
	ws.SetReadLimit(maxMessageSize)
	if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("unexpected websocket close")
			}
			return err
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping inbound message")
			continue
		}
		select {
		case c.inbox <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) writePump(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		if err := c.flush(ws); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return ctx.Err()
		case <-c.wake:
		case <-ticker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// flush writes queued actions in order. A failed write leaves the action at
// the head of the queue for the next connection.
func (c *Conn) flush(ws *websocket.Conn) error {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return nil
		}
		next := c.queue[0]
		c.mu.Unlock()

		if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := ws.WriteMessage(websocket.TextMessage, next); err != nil {
			return err
		}

		c.mu.Lock()
		c.queue = c.queue[1:]
		c.mu.Unlock()
	}
}

func (c *Conn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) setStatus(s Status, attempt int, err error) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	select {
	case c.events <- Event{Status: s, Attempt: attempt, Err: err}:
	default:
		c.log.Debug().Stringer("status", s).Msg("event channel full; dropping status event")
	}
}
