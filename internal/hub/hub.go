package hub

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Hub owns the set of live clients. Delivery never blocks: a client whose
// buffer is full is evicted by the Run loop.
type Hub struct {
	clients map[string]*Client // connID -> client
	evict   chan *Client
	stopped chan struct{} // closed when Run returns
	stop    sync.Once
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		evict:   make(chan *Client, 64),
		stopped: make(chan struct{}),
	}
}

// Run processes evictions until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.evict:
			if h.Remove(client) {
				l := log.Ctx(client.Context())
				l.Warn().Msg("client evicted: send buffer full")
			}

		case <-ctx.Done():
			h.stop.Do(func() { close(h.stopped) })
			h.closeAll()
			return
		}
	}
}

// Add registers client for delivery.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := log.Ctx(client.Context())
	l.Debug().Msg("client registered")
}

// Remove unregisters client and closes its send channel. It reports whether
// the client was still registered.
func (h *Hub) Remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.ID]
	if !ok || current != client {
		return false
	}
	delete(h.clients, client.ID)
	close(client.Send)
	return true
}

// Deliver queues frame for connID. It reports whether the frame was queued.
func (h *Hub) Deliver(connID string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	return h.enqueue(client, frame)
}

// DeliverAll queues frame for every client except skipConn and returns how
// many accepted it.
func (h *Hub) DeliverAll(frame []byte, skipConn string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for id, client := range h.clients {
		if id == skipConn {
			continue
		}
		if h.enqueue(client, frame) {
			n++
		}
	}
	return n
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enqueue expects h.mu to be held.
func (h *Hub) enqueue(client *Client, frame []byte) bool {
	select {
	case client.Send <- frame:
		return true
	default:
		h.scheduleEvict(client)
		return false
	}
}

// scheduleEvict hands client to Run. Evictions requested after Run returned
// are dropped; closeAll already released every client.
func (h *Hub) scheduleEvict(client *Client) {
	select {
	case <-h.stopped:
		return
	default:
	}
	select {
	case h.evict <- client:
	default:
		go func() {
			select {
			case h.evict <- client:
			case <-h.stopped:
			}
		}()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}
