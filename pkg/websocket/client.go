// Package websocket consumes the settlement event stream served on /ws.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

type subscribeMessage struct {
	Type   string `json:"type"`
	Player string `json:"player,omitempty"`
}

// Client keeps a subscription to a settlement stream open, reconnecting with
// backoff when the connection drops.
type Client struct {
	url     string
	player  string
	config  Config
	backoff *Backoff
	logger  *zap.Logger
	events  chan types.Envelope

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected atomic.Bool
}

// Config holds stream client configuration.
type Config struct {
	URL                   string // ws:// or wss:// address of the /ws endpoint
	Player                string // optional player filter, empty for every event
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	BufferSize            int
	Logger                *zap.Logger
}

// New creates a stream client. Call Start to connect.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("stream url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReconnectInitialDelay <= 0 {
		cfg.ReconnectInitialDelay = time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}
	if cfg.ReconnectBackoffMult <= 0 {
		cfg.ReconnectBackoffMult = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		url:    cfg.URL,
		player: cfg.Player,
		config: cfg,
		backoff: NewBackoff(ReconnectConfig{
			InitialDelay:      cfg.ReconnectInitialDelay,
			MaxDelay:          cfg.ReconnectMaxDelay,
			BackoffMultiplier: cfg.ReconnectBackoffMult,
			JitterPercent:     0.2,
		}, cfg.Logger),
		logger: cfg.Logger,
		events: make(chan types.Envelope, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start dials the stream and begins delivering events.
func (c *Client) Start() error {
	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(2)
	go c.run()
	go c.pingLoop()
	return nil
}

// Events returns the channel of received envelopes. It is closed by Close.
func (c *Client) Events() <-chan types.Envelope {
	return c.events
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	// Subscribe before the read loop starts so this is the only data-frame writer.
	err = conn.WriteJSON(subscribeMessage{Type: "subscribe", Player: c.player})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.connected.Store(true)
	ActiveConnections.Set(1)
	c.logger.Info("stream-connected", zap.String("url", c.url), zap.String("player", c.player))
	return nil
}

// run reads until the connection fails, then reconnects, until Close.
func (c *Client) run() {
	defer c.wg.Done()

	for {
		c.readUntilError()

		c.connected.Store(false)
		ActiveConnections.Set(0)

		if c.ctx.Err() != nil {
			return
		}

		c.logger.Warn("stream-connection-lost")
		err := c.backoff.Retry(c.ctx, c.connect)
		if err != nil {
			return
		}
	}
}

func (c *Client) readUntilError() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("stream-read-error", zap.Error(err))
			}
			return
		}

		var env types.Envelope
		err = json.Unmarshal(message, &env)
		if err != nil || env.Type == "" || env.Type == "pong" {
			continue
		}

		MessagesReceivedTotal.WithLabelValues(env.Type).Inc()

		select {
		case c.events <- env:
		default:
			c.logger.Warn("stream-buffer-full", zap.String("type", env.Type), zap.String("key", env.Key))
			MessagesDroppedTotal.WithLabelValues("buffer_full").Inc()
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			if err != nil {
				c.logger.Debug("stream-ping-error", zap.Error(err))
			}
		}
	}
}

// Close stops reconnecting, closes the connection and the events channel.
func (c *Client) Close() error {
	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()
	close(c.events)
	ActiveConnections.Set(0)

	c.logger.Info("stream-closed")
	return nil
}
