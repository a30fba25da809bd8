package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"currency-ledger/internal/chain"
)

// FeedClientConfig configures FeedClient behavior.
type FeedClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the notification channel capacity.
	Buffer int
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// DefaultFeedClientConfig returns default feed client configuration.
func DefaultFeedClientConfig() FeedClientConfig {
	return FeedClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// FeedClient subscribes to a node's receipt feed and redials when the
// connection drops. Notifications published while disconnected are missed.
type FeedClient struct {
	endpoint string
	config   FeedClientConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	notifications chan chain.Notification

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// FeedURL converts a node base URL to its websocket feed URL.
func FeedURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + PathFeed
}

// NewFeedClient connects to the feed of the node at baseURL.
func NewFeedClient(ctx context.Context, baseURL string, config *FeedClientConfig) (*FeedClient, error) {
	cfg := DefaultFeedClientConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultFeedClientConfig().Buffer
	}

	c := &FeedClient{
		endpoint:      FeedURL(baseURL),
		config:        cfg,
		logger:        zerolog.Nop(),
		notifications: make(chan chain.Notification, cfg.Buffer),
		done:          make(chan struct{}),
	}
	if cfg.Logger != nil {
		c.logger = *cfg.Logger
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *FeedClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Notifications returns the notification channel. It is closed by Close.
func (c *FeedClient) Notifications() <-chan chain.Notification {
	return c.notifications
}

// Close closes the WebSocket connection.
func (c *FeedClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.notifications)
	return nil
}

// readLoop reads notifications and forwards them to the channel.
func (c *FeedClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			// A failed reconnect leaves no connection, so try again
			reconnectDelay = c.scheduleReconnect(nil, reconnectDelay, nil)
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			reconnectDelay = c.scheduleReconnect(conn, reconnectDelay, err)

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// scheduleReconnect starts a reconnect unless one is in progress and
// returns the next backoff delay.
func (c *FeedClient) scheduleReconnect(failed *websocket.Conn, delay time.Duration, cause error) time.Duration {
	if c.reconnecting.Swap(true) {
		return delay
	}

	c.logger.Warn().Err(cause).Dur("delay", delay).Msg("feed connection lost, reconnecting")
	c.wg.Add(1)
	go c.reconnect(failed, delay)

	// Exponential backoff
	next := delay * 2
	if next > c.config.MaxReconnectDelay {
		next = c.config.MaxReconnectDelay
	}
	return next
}

// reconnect replaces a failed connection. The feed has no subscription
// handshake, so a fresh connection is a fresh subscription.
func (c *FeedClient) reconnect(failed *websocket.Conn, delay time.Duration) {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil && c.conn == failed {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("feed reconnect failed")
		return
	}
	if c.closed.Load() {
		c.connMu.Lock()
		c.conn.Close()
		c.connMu.Unlock()
	}
}

// handleMessage decodes a notification and delivers it. It blocks while the
// channel is full so that a connected subscriber misses nothing.
func (c *FeedClient) handleMessage(message []byte) {
	var n chain.Notification
	if err := json.Unmarshal(message, &n); err != nil {
		c.logger.Debug().Err(err).Msg("discarding malformed feed message")
		return
	}

	select {
	case c.notifications <- n:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *FeedClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection is handled by the reader
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
