package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/staffhive/teamchat/models"
)

// wsPair spins up a server that attaches every incoming socket to the hub
// for the given conversation, and dials one client against it. The returned
// dialer-side connection is what a browser would hold.
func wsPair(t *testing.T, hub *Hub, conversationID uint, identity models.Identity, name string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := hub.Attach(conversationID, identity, name, ws)
		client.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func waitForConnections(t *testing.T, hub *Hub, conversationID uint, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(conversationID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("connection count = %d, want %d", hub.ConnectionCount(conversationID), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishMessageReachesAllConnections(t *testing.T) {
	hub := NewHub()
	alice := models.Identity{Kind: models.IdentityEmployee, ID: 1}
	bob := models.Identity{Kind: models.IdentityEmployer, ID: 2}

	connA := wsPair(t, hub, 7, alice, "Alice")
	connB := wsPair(t, hub, 7, bob, "Bob")
	waitForConnections(t, hub, 7, 2)

	text := "shift swap?"
	hub.PublishMessage(7, &models.Message{ID: 42, ConversationID: 7, SenderID: 1, Text: &text})

	for _, conn := range []*websocket.Conn{connA, connB} {
		ev := readEvent(t, conn)
		if ev.Type != EventMessage {
			t.Fatalf("event type = %q, want message", ev.Type)
		}
		if ev.Message == nil || ev.Message.ID != 42 {
			t.Fatalf("event message = %+v", ev.Message)
		}
	}
}

func TestPublishDoesNotCrossConversations(t *testing.T) {
	hub := NewHub()
	alice := models.Identity{Kind: models.IdentityEmployee, ID: 1}

	connOther := wsPair(t, hub, 8, alice, "Alice")
	waitForConnections(t, hub, 8, 1)

	text := "not for you"
	hub.PublishMessage(7, &models.Message{ID: 1, ConversationID: 7, Text: &text})

	_ = connOther.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var ev Event
	if err := connOther.ReadJSON(&ev); err == nil {
		t.Fatalf("connection on conversation 8 received %+v", ev)
	}
}

func TestTypingRelayExcludesSender(t *testing.T) {
	hub := NewHub()
	alice := models.Identity{Kind: models.IdentityEmployee, ID: 1}
	bob := models.Identity{Kind: models.IdentityEmployer, ID: 2}

	connA := wsPair(t, hub, 9, alice, "Alice")
	connB := wsPair(t, hub, 9, bob, "Bob")
	waitForConnections(t, hub, 9, 2)

	if err := connA.WriteJSON(Event{Type: EventTyping}); err != nil {
		t.Fatalf("write typing: %v", err)
	}

	ev := readEvent(t, connB)
	if ev.Type != EventTyping {
		t.Fatalf("event type = %q, want typing", ev.Type)
	}
	if ev.Identity == nil || *ev.Identity != alice {
		t.Fatalf("typing identity = %+v, want alice", ev.Identity)
	}
	if ev.DisplayName != "Alice" {
		t.Fatalf("display name = %q", ev.DisplayName)
	}

	// The typer must not hear their own typing event.
	_ = connA.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var echo Event
	if err := connA.ReadJSON(&echo); err == nil {
		t.Fatalf("sender received own typing event: %+v", echo)
	}
}

func TestDisconnectEmptiesRoom(t *testing.T) {
	hub := NewHub()
	alice := models.Identity{Kind: models.IdentityEmployee, ID: 1}

	conn := wsPair(t, hub, 10, alice, "Alice")
	waitForConnections(t, hub, 10, 1)

	conn.Close()
	waitForConnections(t, hub, 10, 0)
}

func TestDropConversationClosesConnections(t *testing.T) {
	hub := NewHub()
	alice := models.Identity{Kind: models.IdentityEmployee, ID: 1}

	conn := wsPair(t, hub, 11, alice, "Alice")
	waitForConnections(t, hub, 11, 1)

	hub.DropConversation(11)
	if got := hub.ConnectionCount(11); got != 0 {
		t.Fatalf("connection count after drop = %d, want 0", got)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still readable after conversation drop")
	}
}

func TestStalledConnectionEvictedAlone(t *testing.T) {
	hub := NewHub()
	alice := models.Identity{Kind: models.IdentityEmployee, ID: 1}
	bob := models.Identity{Kind: models.IdentityEmployer, ID: 2}

	// The stalled peer's write loop never runs, standing in for a wedged
	// connection: its queue fills and it is evicted while the healthy
	// connection keeps receiving.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Attach(12, alice, "Stalled", ws) // no Run: queue is never drained
	}))
	t.Cleanup(srv.Close)
	stalledConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { stalledConn.Close() })

	healthy := wsPair(t, hub, 12, bob, "Healthy")
	waitForConnections(t, hub, 12, 2)

	text := "x"
	for i := 0; i <= sendBuffer; i++ {
		hub.PublishMessage(12, &models.Message{ID: uint(i + 1), ConversationID: 12, Text: &text})
	}

	// The overflow publish closed the stalled connection.
	_ = stalledConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := stalledConn.ReadMessage(); err == nil {
		t.Fatal("stalled connection survived a full queue")
	}

	// The healthy connection got every event.
	ev := readEvent(t, healthy)
	if ev.Type != EventMessage || ev.Message.ID != 1 {
		t.Fatalf("healthy connection first event = %+v", ev)
	}

	// Further publishes only reach the healthy connection.
	if delivered := hub.broadcast(12, Event{Type: EventMessage, Message: &models.Message{ID: 99, Text: &text}}, nil); delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
}
