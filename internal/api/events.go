package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Avataren/slidekiosk/internal/bridge"
)

// eventHub fans diagnostic events out to websocket clients. Slow
// clients drop events rather than stalling the pipeline side.
type eventHub struct {
	mu      sync.Mutex
	clients map[string]chan bridge.DiagMessage
}

func newEventHub(br *bridge.Bridge) *eventHub {
	h := &eventHub{
		clients: make(map[string]chan bridge.DiagMessage),
	}
	br.Listen(bridge.ChannelDiag, func(msg interface{}) {
		if diag, ok := msg.(bridge.DiagMessage); ok {
			h.broadcast(diag)
		}
	})
	return h
}

func (h *eventHub) broadcast(diag bridge.DiagMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- diag:
		default:
			// Client is slow, skip this event
		}
	}
}

// subscribe registers a client and returns its id and channel.
func (h *eventHub) subscribe() (string, chan bridge.DiagMessage) {
	id := uuid.NewString()
	ch := make(chan bridge.DiagMessage, 16)

	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *eventHub) unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
	h.mu.Unlock()
}
