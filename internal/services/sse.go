package services

import (
	"sync"

	"github.com/google/uuid"
)

// Event is a server-sent event for one user.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type sseClient struct {
	userID string
	ch     chan Event
}

// SSEHub fans events out to the open streams of each user.
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe opens a stream for userID and returns its client id and channel.
func (h *SSEHub) Subscribe(userID string) (string, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientID := uuid.NewString()
	ch := make(chan Event, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return clientID, ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// PublishToUser sends event to every stream userID has open. Slow clients
// whose buffer is full miss the event.
func (h *SSEHub) PublishToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
