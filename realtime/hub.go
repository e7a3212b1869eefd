package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/staffhive/teamchat/models"
)

// Hub is the process-local registry of live connections, keyed by
// conversation id. It is constructed once at startup and injected wherever
// message events need to fan out; nothing here is persisted or shared across
// instances, so delivery only reaches sockets attached to this process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uint]map[*Client]struct{}),
	}
}

// Attach registers a new connection for the conversation and returns the
// client whose Run method drives it.
func (h *Hub) Attach(conversationID uint, identity models.Identity, displayName string, ws *websocket.Conn) *Client {
	c := newClient(h, conversationID, identity, displayName, ws)

	h.mu.Lock()
	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.ConversationID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.ConversationID)
	}
}

// broadcast fans an event out to the conversation's connections. Sends are
// per-client queue handoffs; a dead or slow client fails alone and is
// evicted by its own write loop.
func (h *Hub) broadcast(conversationID uint, ev Event, exclude *Client) int {
	h.mu.RLock()
	room := h.rooms[conversationID]
	clients := make([]*Client, 0, len(room))
	for c := range room {
		if c == exclude {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if err := c.enqueue(ev); err == nil {
			delivered++
		}
	}
	return delivered
}

// PublishMessage notifies every connection on the conversation, the sender's
// included, that a message was persisted. Best-effort: failures are dropped,
// never surfaced, because durability already succeeded.
func (h *Hub) PublishMessage(conversationID uint, msg *models.Message) {
	h.broadcast(conversationID, Event{Type: EventMessage, Message: msg}, nil)
}

// DropConversation closes every connection on a conversation and forgets the
// set. Called when the conversation is deleted.
func (h *Hub) DropConversation(conversationID uint) {
	h.mu.Lock()
	room := h.rooms[conversationID]
	delete(h.rooms, conversationID)
	h.mu.Unlock()

	for c := range room {
		c.close(websocket.CloseGoingAway, "conversation deleted")
	}
}

// ConnectionCount reports the number of live connections on a conversation.
func (h *Hub) ConnectionCount(conversationID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// Close tears the hub down, closing every tracked connection.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[uint]map[*Client]struct{})
	h.mu.Unlock()

	for _, room := range rooms {
		for c := range room {
			c.close(websocket.CloseGoingAway, "shutting down")
		}
	}
}
