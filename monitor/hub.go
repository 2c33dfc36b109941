// Package monitor streams run progress to attached websocket clients.
// It sits outside the core loop: the scheduler hands it an iteration
// snapshot through a callback and the hub never blocks or fails the
// run.
package monitor

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/runner"
)

// Update is one progress message.
type Update struct {
	Iteration int                `json:"iteration"`
	Timings   map[string]float64 `json:"timings"`
}

// Hub maintains the set of active clients and broadcasts iteration
// updates to them.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub returns a hub accepting connections from any origin.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler upgrades an HTTP request and registers the client.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("monitor: upgrade failed")
			return
		}
		h.mu.Lock()
		h.conns[conn] = struct{}{}
		h.mu.Unlock()
		log.WithField("remote", conn.RemoteAddr().String()).Info("monitor: client attached")
	}
}

// Broadcast sends an update to every client, dropping connections
// that fail to accept it.
func (h *Hub) Broadcast(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(&u); err != nil {
			log.WithError(err).Debug("monitor: dropping client")
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// OnIteration adapts the hub to the scheduler's iteration callback.
func (h *Hub) OnIteration(iter int, timings map[runner.Phase]float64) {
	u := Update{Iteration: iter, Timings: make(map[string]float64, len(timings))}
	for phase, s := range timings {
		u.Timings[string(phase)] = s
	}
	h.Broadcast(u)
}

// Close drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
