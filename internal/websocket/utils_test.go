package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestConn returns both ends of a real upgraded WebSocket connection.
func newTestConn(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	server = <-conns
	t.Cleanup(func() { server.Close() })
	return server, client
}

func TestReadLoopExitsWhenConsumerStops(t *testing.T) {
	server, client := newTestConn(t)

	done := make(chan struct{})
	msgs, _ := ReadLoop(server, done)

	if err := client.WriteJSON(RequestPayload{Action: ActionSubmit}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	if err := client.WriteJSON(RequestPayload{Action: ActionPing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Action != ActionSubmit {
			t.Fatalf("action = %s, want %s", msg.Action, ActionSubmit)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first message never delivered")
	}

	// The consumer walks away with the second message still in flight.
	close(done)

	// The loop must exit and close its channel even though the pending send
	// never found a receiver.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-msgs:
			if !ok {
				return
			}
			// The in-flight message may still win the select race; the
			// next receive must observe the closed channel.
		case <-deadline:
			t.Fatal("read loop still running after done closed")
		}
	}
}

func TestReadLoopReportsReadError(t *testing.T) {
	server, client := newTestConn(t)

	done := make(chan struct{})
	defer close(done)
	msgs, errs := ReadLoop(server, done)

	client.Close()

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("read error is nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read error never reported")
	}

	if _, ok := <-msgs; ok {
		t.Fatal("message channel still open after read error")
	}
}
