// Package transport keeps a websocket connection to the game-state relay
// open and feeds its frames to a Listener.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("relay not connected")

const (
	readLimit  = 1 << 20
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	dialWait   = 10 * time.Second
)

// DefaultSubprotocol is offered to the relay during the handshake.
const DefaultSubprotocol = "echo-protocol"

// Listener receives connection lifecycle callbacks and inbound frames.
// Calls happen on the goroutine running Run.
type Listener interface {
	OnOpen()
	OnClose()
	OnError(err error)
	OnMessage(data []byte)
}

// Config holds relay connection settings.
type Config struct {
	URL          string
	Subprotocols []string
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

// Client is a reconnecting relay connection.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dialer ws.Dialer

	mu   sync.Mutex // guards conn and serializes writes
	conn *ws.Conn
}

// New creates a client. Zero backoff values default to 1s and 30s.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.Subprotocols == nil {
		cfg.Subprotocols = []string{DefaultSubprotocol}
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		dialer: ws.Dialer{
			HandshakeTimeout: dialWait,
			Subprotocols:     cfg.Subprotocols,
		},
	}
}

// Run connects to the relay and serves the connection, reconnecting with
// exponential backoff until ctx is done. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context, l Listener) error {
	backoff := c.cfg.MinBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("relay dial failed", "url", c.cfg.URL, "backoff", backoff, "error", err)
		} else {
			c.logger.Info("relay connected", "url", c.cfg.URL, "subprotocol", conn.Subprotocol())
			backoff = c.cfg.MinBackoff
			c.serve(ctx, conn, l)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

// serve runs one connection until it fails or ctx is done.
func (c *Client) serve(ctx context.Context, conn *ws.Conn, l Listener) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	done := make(chan struct{})
	go c.keepalive(ctx, conn, done)

	l.OnOpen()

	var readErr error
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		l.OnMessage(msg)
	}
	close(done)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()

	if ctx.Err() == nil && !ws.IsCloseError(readErr, ws.CloseNormalClosure, ws.CloseGoingAway) {
		c.logger.Warn("relay read error", "error", readErr)
		l.OnError(readErr)
	}
	l.OnClose()
	c.logger.Info("relay disconnected", "url", c.cfg.URL)
}

// keepalive pings the relay and closes the connection when ctx is done.
func (c *Client) keepalive(ctx context.Context, conn *ws.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("relay ping failed", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// Send writes one text frame to the relay.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Connected reports whether a relay connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
