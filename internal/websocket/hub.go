package websocket

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	EventBalance      = "balance"
	EventNotification = "notification"
)

// Event is the envelope every pushed frame is wrapped in.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type BalanceUpdate struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Broadcast queues event on every connection of userID and returns how many
// accepted it. Slow clients with a full buffer are skipped.
func (h *Hub) Broadcast(userID string, event Event) int {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("event", event.Type).Warn("websocket: marshal event")
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.Broadcast(userID, Event{Type: EventBalance, Data: update})
}

func (h *Hub) BroadcastNotification(userID string, notification any) {
	h.Broadcast(userID, Event{Type: EventNotification, Data: notification})
}
