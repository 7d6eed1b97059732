package websocket

import (
	"encoding/json"
	"sync"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// TopicAll receives every notification.
const TopicAll = "all"

// Client represents a WebSocket client subscribed to one topic: TopicAll or a
// flight key.
type Client struct {
	hub   *Hub
	conn  conn
	send  chan []byte
	topic string
}

// Hub fans ledger notifications out to websocket clients
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan ledger.Notification
	done       chan struct{}
	log        zerolog.Logger
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan ledger.Notification, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Notify queues n for broadcast. It never blocks: when the hub is saturated
// the notification is dropped for websocket clients only.
func (h *Hub) Notify(n ledger.Notification) {
	select {
	case h.broadcast <- n:
	default:
		h.log.Warn().Uint64("seq", n.Seq).Msg("websocket broadcast queue full, notification dropped")
	}
}

// Run starts the hub's main loop and returns when Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			h.log.Debug().Str("topic", client.topic).Int("clients", len(h.clients[client.topic])).Msg("client registered")
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case n := <-h.broadcast:
			data, err := json.Marshal(n)
			if err != nil {
				h.log.Error().Err(err).Uint64("seq", n.Seq).Msg("failed to marshal notification")
				continue
			}
			topics := []string{TopicAll}
			if key, ok := FlightKeyOf(n); ok {
				topics = append(topics, key.Hex())
			}

			h.mu.Lock()
			for _, topic := range topics {
				for client := range h.clients[topic] {
					select {
					case client.send <- data:
					default:
						h.remove(client)
					}
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects all clients.
func (h *Hub) Stop() {
	close(h.done)
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	h.log.Debug().Str("topic", client.topic).Int("remaining", len(clients)).Msg("client unregistered")
	if len(clients) == 0 {
		delete(h.clients, client.topic)
	}
}

// GetClientCount returns the number of clients subscribed to topic
func (h *Hub) GetClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// FlightKeyOf returns the flight a notification concerns, if any.
func FlightKeyOf(n ledger.Notification) (common.Hash, bool) {
	switch d := n.Data.(type) {
	case ledger.FlightRegistered:
		return d.Key, true
	case ledger.OracleRequested:
		return d.FlightKey, true
	case ledger.StatusResolved:
		return d.FlightKey, true
	case ledger.InsureeCredited:
		return d.FlightKey, true
	}
	return common.Hash{}, false
}
