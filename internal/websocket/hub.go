// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"postflow-service/internal/domain/post"
)

// Event is a post lifecycle notification pushed to dashboard clients.
type Event struct {
	Type       string      `json:"type"` // post.queued, post.published, post.failed, post.retrying
	CampaignID int64       `json:"campaign_id"`
	PostID     string      `json:"post_id"`
	Status     post.Status `json:"status"`
	Message    string      `json:"message,omitempty"`
	At         time.Time   `json:"at"`
}

// Hub fans post lifecycle events out to connected clients. Clients may
// subscribe to a single campaign or, with campaign ID zero, to everything.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	events     chan Event

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Event, 256),
		logger:     logger,
	}
}

// Broadcast queues an event for delivery. It never blocks the dispatch
// loop; under backpressure the event is dropped.
func (h *Hub) Broadcast(evt Event) {
	select {
	case h.events <- evt:
	default:
		h.logger.Warn("event channel full, dropping event",
			zap.String("type", evt.Type),
			zap.String("post_id", evt.PostID),
		)
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("ws client connected", zap.Int64("campaign_id", client.campaignID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case evt := <-h.events:
			h.deliver(evt)
		}
	}
}

func (h *Hub) deliver(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.campaignID != 0 && client.campaignID != evt.CampaignID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Slow consumer; skip rather than stall delivery to others.
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
