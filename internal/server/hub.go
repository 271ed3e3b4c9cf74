package server

import (
	"sync"

	"github.com/yildizm/nginx-config-viewer/internal/monitor"
)

// Hub fans broadcast messages out to every connected /events client.
// Each client has a small buffer; a client whose buffer is full misses the
// message instead of blocking the broadcaster.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
	buffer  int
	metrics *monitor.ServerMetrics
}

// NewHub creates a hub with the given per-client buffer size.
func NewHub(buffer int, metrics *monitor.ServerMetrics) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	if metrics == nil {
		metrics = monitor.NewServerMetrics()
	}
	return &Hub{
		clients: make(map[chan string]struct{}),
		buffer:  buffer,
		metrics: metrics,
	}
}

// Subscribe registers a client. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, h.buffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	h.metrics.Clients.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			close(ch)
			h.mu.Unlock()
			h.metrics.Clients.Dec()
		})
	}
}

// Broadcast queues msg for every client and returns how many accepted it.
func (h *Hub) Broadcast(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.Broadcasts.Inc()
	delivered := 0
	for ch := range h.clients {
		select {
		case ch <- msg:
			delivered++
		default:
			h.metrics.Dropped.Inc()
		}
	}
	return delivered
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
