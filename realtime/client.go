package realtime

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/staffhive/teamchat/models"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Client wraps one websocket attached to one conversation. All outbound
// traffic goes through a buffered channel drained by a single write loop, so
// a stalled peer can only ever block itself.
type Client struct {
	ID             string
	ConversationID uint
	Identity       models.Identity
	DisplayName    string

	hub  *Hub
	ws   *websocket.Conn
	send chan Event

	once   sync.Once
	closed chan struct{}
}

func newClient(hub *Hub, conversationID uint, identity models.Identity, displayName string, ws *websocket.Conn) *Client {
	return &Client{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Identity:       identity,
		DisplayName:    displayName,
		hub:            hub,
		ws:             ws,
		send:           make(chan Event, sendBuffer),
		closed:         make(chan struct{}),
	}
}

// enqueue hands an event to the write loop. A full buffer means the peer is
// not keeping up; the client is evicted rather than allowed to stall the
// caller or its siblings.
func (c *Client) enqueue(ev Event) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	case c.send <- ev:
		return nil
	default:
		c.close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("send buffer full")
	}
}

func (c *Client) close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Run pumps the connection until it drops, then detaches it from the hub.
// It blocks, so the websocket handler calls it as the tail of the request.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
	c.hub.unregister(c)
	c.close(websocket.CloseNormalClosure, "bye")
}

func (c *Client) readLoop() {
	for {
		var ev Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error on conversation %d: %v", c.ConversationID, err)
			}
			return
		}

		switch ev.Type {
		case EventTyping:
			// Advisory only; relayed to everyone else on the conversation.
			identity := c.Identity
			c.hub.broadcast(c.ConversationID, Event{
				Type:        EventTyping,
				Identity:    &identity,
				DisplayName: c.DisplayName,
			}, c)
		case EventMessage:
			// Client-originated relay, sender included, mirroring the
			// post-persist notification path.
			c.hub.broadcast(c.ConversationID, Event{
				Type:    EventMessage,
				Message: ev.Message,
			}, nil)
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}
