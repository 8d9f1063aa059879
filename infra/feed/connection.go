// Package feed maintains one websocket session to a combined-stream
// endpoint, reconnecting with a fixed backoff until a retry budget runs out.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrRetriesExhausted = errors.New("feed: retries exhausted")
	ErrNotConnected     = errors.New("feed: not connected")
)

// Dialer is satisfied by *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (*websocket.Conn, *http.Response, error)
}

type Config struct {
	Name         string
	URL          string
	Channels     []string
	MaxRetries   int
	Backoff      time.Duration
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// Frame is one raw message read from the transport.
type Frame struct {
	Session  string
	Seq      uint64 // restarts at 1 for every session
	Data     []byte
	Received time.Time
}

type Connection struct {
	cfg    Config
	dialer Dialer
	logger *zap.Logger

	state   atomic.Int32
	retries atomic.Int32
	subID   atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	session string
	err     error
}

func NewConnection(cfg Config, dialer Dialer, logger *zap.Logger) *Connection {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		cfg:    cfg,
		dialer: dialer,
		logger: logger.With(zap.String("feed", cfg.Name)),
	}
}

func (c *Connection) Name() string { return c.cfg.Name }

func (c *Connection) State() State { return State(c.state.Load()) }

// Retries is the number of failed dials since the last successful connect.
func (c *Connection) Retries() int { return int(c.retries.Load()) }

// Err returns the terminal error once the connection is Terminated.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Session is the id of the current session, empty before the first connect.
func (c *Connection) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect dials a fresh session. A successful connect resets the retry
// counter.
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(Connecting)

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	session := uuid.NewString()
	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.mu.Unlock()

	c.retries.Store(0)
	c.logger.Info("connected", zap.String("session", session), zap.String("url", c.cfg.URL))
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

// Subscribe asks the venue for the given channels on the current session.
func (c *Connection) Subscribe(channels ...string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	req := subscribeRequest{Method: "SUBSCRIBE", Params: channels, ID: c.subID.Add(1)}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.setState(Subscribed)
	c.logger.Info("subscribed", zap.Strings("channels", channels))
	return nil
}

// Run connects, subscribes and hands every frame to fn until ctx ends or
// the retry budget is spent. fn runs on the read goroutine.
//
// Only failed dials count as retries. A session that was established and
// then broke (subscribe or read error) is always redialled after the
// backoff. When consecutive dial failures reach MaxRetries the connection
// becomes Terminated and Run returns an error wrapping ErrRetriesExhausted.
func (c *Connection) Run(ctx context.Context, fn func(Frame)) error {
	for {
		if err := ctx.Err(); err != nil {
			c.setState(Disconnected)
			return err
		}

		err := c.Connect(ctx)
		connected := err == nil
		if connected {
			err = c.Subscribe(c.cfg.Channels...)
			if err == nil {
				err = c.stream(ctx, fn)
			}
		}
		c.close()

		if ctx.Err() != nil {
			c.setState(Disconnected)
			return ctx.Err()
		}
		c.setState(Disconnected)

		if connected {
			c.logger.Warn("session dropped, reconnecting",
				zap.Error(err),
				zap.Duration("backoff", c.cfg.Backoff),
			)
		} else {
			n := int(c.retries.Add(1))
			c.logger.Warn("dial failed",
				zap.Error(err),
				zap.Int("retry", n),
				zap.Int("max_retries", c.cfg.MaxRetries),
			)
			if n >= c.cfg.MaxRetries {
				terr := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, n, err)
				c.mu.Lock()
				c.err = terr
				c.mu.Unlock()
				c.setState(Terminated)
				c.logger.Error("feed terminated", zap.Error(terr))
				return terr
			}
		}

		select {
		case <-ctx.Done():
			c.setState(Disconnected)
			return ctx.Err()
		case <-time.After(c.cfg.Backoff):
		}
	}
}

// Frames runs the connection in the background and returns its frames.
// The channel closes when the feed terminates or ctx ends; Err tells the
// two apart.
func (c *Connection) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame, 64)
	go func() {
		defer close(out)
		_ = c.Run(ctx, func(f Frame) {
			select {
			case out <- f:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

func (c *Connection) stream(ctx context.Context, fn func(Frame)) error {
	c.mu.Lock()
	conn, session := c.conn, c.session
	c.mu.Unlock()

	// unblock ReadMessage on shutdown
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, stop)
	}

	c.setState(Streaming)
	var seq uint64
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		seq++
		fn(Frame{Session: session, Seq: seq, Data: msg, Received: time.Now()})
	}
}

func (c *Connection) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Connection) setState(s State) {
	// Terminated is final
	for {
		cur := c.state.Load()
		if State(cur) == Terminated {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}
