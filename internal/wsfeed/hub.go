// Package wsfeed fans out the core pipeline's Alert/FrameRiskSummary/
// UnifiedObject streams to connected operator consoles over WebSocket.
// Adapted from orbo's internal/ws/detection_hub.go camera-keyed broadcast
// hub: the core has no "camera" concept of its own, so clients subscribe
// to named channels ("alerts", "summaries", "objects") instead of camera
// IDs, and the broadcast loop is driven by internal/bus subscriptions
// rather than a push API called per-detection.
package wsfeed

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sentryfeed/internal/bus"
	"sentryfeed/internal/risk"
	"sentryfeed/internal/semantic"
)

// Hub manages WebSocket connections for the three downstream channels and
// bridges them to the core's EventBus instances.
type Hub struct {
	logger *log.Logger

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]bool
}

// NewHub constructs an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(os.Stderr, "[sentryfeed] ", log.LstdFlags)
	}
	return &Hub{logger: logger, clients: make(map[string]map[*websocket.Conn]bool)}
}

// Register subscribes a connection to a named channel ("alerts",
// "summaries", "objects").
func (h *Hub) Register(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel] == nil {
		h.clients[channel] = make(map[*websocket.Conn]bool)
	}
	h.clients[channel][conn] = true
}

// Unregister removes a connection from a channel.
func (h *Hub) Unregister(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, channel)
		}
	}
}

// HasClients reports whether any connection is subscribed to channel.
func (h *Hub) HasClients(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[channel]
	return ok && len(conns) > 0
}

func (h *Hub) broadcast(channel string, payload any) {
	if !h.HasClients(channel) {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("wsfeed: marshal failed for channel %s: %v", channel, err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[channel]))
	for c := range h.clients[channel] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("wsfeed: write to client on %s failed: %v", channel, err)
			h.Unregister(channel, conn)
			conn.Close()
		}
	}
}

// ClientCount returns the total number of connections across all channels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// Bridge subscribes to the three core buses and forwards every published
// value to the matching channel's connected clients, until stop is
// signaled.
func (h *Hub) Bridge(alerts *bus.Bus[risk.Alert], summaries *bus.Bus[risk.FrameRiskSummary], objects *bus.Bus[[]semantic.UnifiedObject], stop <-chan struct{}) {
	alertCh, unsubAlerts := alerts.Subscribe(16)
	summaryCh, unsubSummaries := summaries.Subscribe(16)
	objectCh, unsubObjects := objects.Subscribe(16)
	defer unsubAlerts()
	defer unsubSummaries()
	defer unsubObjects()

	for {
		select {
		case <-stop:
			return
		case a, ok := <-alertCh:
			if !ok {
				return
			}
			h.broadcast("alerts", a)
		case s, ok := <-summaryCh:
			if !ok {
				return
			}
			h.broadcast("summaries", s)
		case o, ok := <-objectCh:
			if !ok {
				return
			}
			h.broadcast("objects", o)
		}
	}
}
