package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 64
	writeTimeout   = 5 * time.Second
)

// ClientMessage is sent by websocket subscribers. Type is "subscribe" (with an
// optional Player filter, empty for all) or "ping".
type ClientMessage struct {
	Type   string `json:"type"`
	Player string `json:"player,omitempty"`
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	player string // lower-case hex, empty for every event
}

// Hub streams envelopes to websocket subscribers. Events without a player go
// to every subscriber; settlements only to subscribers of that player or of all.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *zap.Logger

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
}

// HubConfig holds websocket hub configuration.
type HubConfig struct {
	AllowOrigin  func(r *http.Request) bool // nil allows any origin
	PingInterval time.Duration
	Logger       *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(cfg *HubConfig) *Hub {
	allow := cfg.AllowOrigin
	if allow == nil {
		allow = func(*http.Request) bool { return true }
	}
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}

	return &Hub{
		upgrader:     websocket.Upgrader{CheckOrigin: allow},
		pingInterval: ping,
		logger:       cfg.Logger,
		clients:      make(map[*subscriber]struct{}),
	}
}

func (h *Hub) Name() string { return "websocket" }

// ServeHTTP upgrades the request and streams events until the client leaves.
// The optional ?player= query sets the initial filter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket-upgrade-failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		player: strings.ToLower(r.URL.Query().Get("player")),
	}
	h.register(sub)

	go h.writeLoop(sub)
	h.readLoop(sub)
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	h.clients[sub] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	HubClients.Set(float64(count))
	h.logger.Debug("websocket-subscriber-joined",
		zap.String("remote", sub.conn.RemoteAddr().String()),
		zap.Int("clients", count))
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, sub)
	close(sub.send)
	count := len(h.clients)
	h.mu.Unlock()

	HubClients.Set(float64(count))
	h.logger.Debug("websocket-subscriber-left", zap.Int("clients", count))
}

// readLoop handles subscriber control messages. It returns when the connection fails.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.unregister(sub)

	for {
		var msg ClientMessage
		err := sub.conn.ReadJSON(&msg)
		if err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			sub.player = strings.ToLower(msg.Player)
			h.mu.Unlock()
		case "ping":
			h.mu.RLock()
			if _, ok := h.clients[sub]; ok {
				select {
				case sub.send <- []byte(`{"type":"pong"}`):
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// writeLoop is the only writer on sub.conn.
func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err := sub.conn.WriteMessage(websocket.TextMessage, msg)
			if err != nil {
				return
			}
		case <-ticker.C:
			err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			if err != nil {
				return
			}
		}
	}
}

// Publish queues env for every matching subscriber. Slow subscribers miss events.
func (h *Hub) Publish(_ context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	player := strings.ToLower(env.Player)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.clients {
		if sub.player != "" && player != "" && sub.player != player {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			DroppedTotal.WithLabelValues("slow_subscriber").Inc()
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for sub := range h.clients {
		conns = append(conns, sub.conn)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	h.logger.Info("websocket-hub-closed", zap.Int("clients", len(conns)))
	return nil
}
