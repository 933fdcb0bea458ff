package websocket

import (
	"context"
	"sync"

	"coderoom/internal/metrics"

	"go.uber.org/zap"
)

// Hub tracks live clients and fans frames out to their send queues. Sends
// never block: a client whose queue is full is dropped and resyncs from the
// snapshot when it reconnects.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
	closing bool
	logger  *zap.SugaredLogger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.Sugar(),
	}
}

// Add registers c. It reports false once the hub is shutting down.
func (h *Hub) Add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}
	h.clients[c] = struct{}{}
	c.closed = false
	metrics.ConnectedClients.Inc()

	h.logger.Infow("Client connected",
		"client_id", c.ID,
		"remote_addr", c.addr,
		"clients_count", len(h.clients),
	)
	return true
}

// Remove unregisters c and closes its send queue. It reports whether c was
// still registered.
func (h *Hub) Remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(c, "disconnected")
}

func (h *Hub) removeLocked(c *Client, reason string) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)
	metrics.ConnectedClients.Dec()

	h.logger.Infow("Client removed",
		"client_id", c.ID,
		"reason", reason,
		"clients_count", len(h.clients),
	)
	return true
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendTo queues payload for c alone.
func (h *Hub) SendTo(c *Client, payload []byte) bool {
	h.mu.RLock()
	ok := h.trySend(c, payload)
	h.mu.RUnlock()

	if !ok {
		h.dropSlow([]*Client{c})
	}
	return ok
}

func (h *Hub) Broadcast(payload []byte) {
	h.BroadcastExcept(nil, payload)
}

// BroadcastExcept queues payload for every client but skip.
func (h *Hub) BroadcastExcept(skip *Client, payload []byte) {
	var failed []*Client

	h.mu.RLock()
	for c := range h.clients {
		if c == skip {
			continue
		}
		if !h.trySend(c, payload) {
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(failed)
}

// trySend must be called with mu held.
func (h *Hub) trySend(c *Client, payload []byte) bool {
	if c.closed {
		return false
	}
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) dropSlow(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range clients {
		if h.removeLocked(c, "send buffer full") {
			metrics.DroppedClients.Inc()
			h.logger.Warnw("Dropped slow client", "client_id", c.ID, "remote_addr", c.addr)
		}
	}
}

// track counts a pump goroutine so Shutdown can wait for it.
func (h *Hub) track() func() {
	h.wg.Add(1)
	return h.wg.Done
}

// Shutdown closes every send queue, which makes each write pump send a close
// frame, then waits for the pumps to exit or ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	count := len(h.clients)
	for c := range h.clients {
		h.removeLocked(c, "shutdown")
	}
	h.mu.Unlock()

	h.logger.Infow("Hub shutting down", "clients_count", count)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.logger.Warn("Hub shutdown timed out with pumps still running")
		return ctx.Err()
	}
}
