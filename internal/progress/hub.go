// Package progress carries mining counters and lifecycle events from
// the engine to subscribed clients, one broadcast channel per mining
// task. Delivery is FIFO within a task; subscribers joining late only
// see events emitted after they subscribed.
package progress

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// EventType identifies a progress event.
type EventType string

const (
	// EventFetched is the running scanned-message counter.
	EventFetched EventType = "fetched"

	// EventExtracted is the running extracted-contact counter.
	EventExtracted EventType = "extracted"

	// EventFolderScanned signals one folder has fully drained.
	EventFolderScanned EventType = "folder-scanned"

	// EventFetchingFinished carries the final fetched total once every
	// selected folder has drained.
	EventFetchingFinished EventType = "fetching-finished"

	// EventClose signals the task terminated. Error detail is attached
	// only for fatal cases.
	EventClose EventType = "close"
)

// Event is one progress update for a mining task.
type Event struct {
	Type     EventType `json:"type"`
	MiningID string    `json:"mining_id"`
	Count    int64     `json:"count,omitempty"`
	Folder   string    `json:"folder,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Hub maintains the set of active clients and routes task events to
// their subscribers.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Task subscriptions: miningID -> set of clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	// Broadcast to task subscribers; a single ordered channel keeps
	// per-task delivery FIFO.
	broadcast chan *taskMessage

	mu sync.RWMutex

	logger *slog.Logger
}

type subscriptionRequest struct {
	client   *Client
	miningID string
}

type taskMessage struct {
	miningID string
	payload  []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *taskMessage, 256),
		logger:        logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for miningID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, miningID)
					}
				}
			}
			h.mu.Unlock()

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.miningID] == nil {
				h.subscriptions[req.miningID] = make(map[*Client]bool)
			}
			h.subscriptions[req.miningID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to mining task", slog.String("mining_id", req.miningID))
			}

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.miningID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.miningID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.miningID]
			for client := range subscribers {
				select {
				case client.send <- msg.payload:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to a mining task's events
func (h *Hub) Subscribe(client *Client, miningID string) {
	h.subscribe <- &subscriptionRequest{client: client, miningID: miningID}
}

// Unsubscribe unsubscribes a client from a mining task
func (h *Hub) Unsubscribe(client *Client, miningID string) {
	h.unsubscribe <- &subscriptionRequest{client: client, miningID: miningID}
}

// Publish emits an event to all subscribers of its mining task.
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal progress event", slog.Any("error", err))
		}
		return
	}

	h.broadcast <- &taskMessage{
		miningID: event.MiningID,
		payload:  payload,
	}
}
