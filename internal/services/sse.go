package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkflowEvent is a real-time update pushed to the users a notification concerns
type WorkflowEvent struct {
	Kind       NotificationKind `json:"kind"`
	EntityType string           `json:"entity_type"`
	EntityID   uuid.UUID        `json:"entity_id"`
	Title      string           `json:"title"`
	Message    string           `json:"message,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type sseClient struct {
	userID uuid.UUID
	ch     chan WorkflowEvent
}

// SSEHub manages SSE client connections and per-user event delivery
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a client of userID and returns its event channel
func (h *SSEHub) Subscribe(clientID string, userID uuid.UUID) <-chan WorkflowEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Buffered so a slow reader never blocks a publisher
	ch := make(chan WorkflowEvent, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish sends event to every connection of the given users
func (h *SSEHub) Publish(event WorkflowEvent, userIDs ...uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	targets := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		targets[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if _, ok := targets[c.userID]; !ok {
			continue
		}
		// Non-blocking send, drop event if client buffer is full
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

var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
