// Package relay fans bus events out to connected websocket peers so
// that every open client sees local writes, and feeds frames received
// from peers back onto the local bus.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/bus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
	busBuffer  = 128
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// Hub owns the set of connected peers. All membership changes go
// through the register/unregister channels so the run loop is the only
// writer of the client map.
type Hub struct {
	bus    *bus.Bus
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *inboundFrame
}

func NewHub(b *bus.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		bus:        b,
		logger:     logger.Named("relay"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inboundFrame),
	}
}

// Run pumps until ctx is cancelled. Bus events are broadcast to every
// peer except the one whose source produced them; inbound frames are
// republished on the local bus and reach the other peers through the
// same subscription.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe("", busBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.addClient(c)

		case c := <-h.unregister:
			h.removeClient(c)

		case ev := <-events:
			h.broadcast(ev)

		case frame := <-h.inbound:
			h.republish(frame)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Info("peer connected", zap.String("client", c.ID), zap.String("source", c.Source))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Info("peer disconnected", zap.String("client", c.ID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast ships ev to every peer that did not originate it. A peer
// whose send buffer is full is dropped rather than allowed to stall
// the loop.
func (h *Hub) broadcast(ev bus.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	var stalled []*Client
	for _, c := range h.clients {
		if c.Source != "" && c.Source == ev.Source {
			continue
		}
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.logger.Warn("peer send buffer full, dropping", zap.String("client", c.ID))
		h.removeClient(c)
	}
}

func (h *Hub) republish(frame *inboundFrame) {
	var ev bus.Event
	if err := json.Unmarshal(frame.data, &ev); err != nil {
		h.logger.Warn("bad frame from peer", zap.String("client", frame.client.ID), zap.Error(err))
		return
	}
	if ev.Source == "" {
		ev.Source = frame.client.Source
	}
	h.bus.Publish(ev)
}

// PeerCount reports the number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a websocket peer connection. The
// peer identifies its change source with the "source" query parameter
// so its own events are not echoed back to it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		ID:     uuid.NewString(),
		Source: r.URL.Query().Get("source"),
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBuffer),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}
