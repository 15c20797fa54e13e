package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvkrylov/tvchart-session/internal/protocol"
)

var upgrader = websocket.Upgrader{}

// newTestServer starts an httptest server that upgrades every connection
// to a WebSocket and hands it to handle, returning the server's ws:// URL.
func newTestServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// encodeBarUpdate is called from test server goroutines, never the test
// goroutine itself, so it must not use *testing.T for failure reporting.
func encodeBarUpdate(index int) string {
	encoded, err := protocol.Encode("du", []interface{}{"cs_test", map[string]interface{}{
		"$prices": map[string]interface{}{
			"s": []interface{}{
				map[string]interface{}{"i": index, "v": []interface{}{"1700000000", "1", "2", "0.5", "1.5", "100"}},
			},
		},
	}})
	if err != nil {
		panic(err) // unreachable: these literals always encode
	}
	return encoded
}

func TestClientDispatchesDataUpdateEvents(t *testing.T) {
	wsURL := newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(encodeBarUpdate(0)))
		time.Sleep(50 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := New(ctx, Config{URL: wsURL}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := client.Subscribe()
	go client.Run(ctx)

	select {
	case event := <-events:
		if len(event.OHLC) != 1 {
			t.Fatalf("expected 1 bar, got %+v", event.OHLC)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestClientEchoesHeartbeat(t *testing.T) {
	echoed := make(chan string, 1)

	wsURL := newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(protocol.EncodeHeartbeat("~h~1")))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		echoed <- string(msg)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := New(ctx, Config{URL: wsURL}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	go client.Run(ctx)

	select {
	case got := <-echoed:
		if got != "~m~4~m~~h~1" {
			t.Fatalf("unexpected echo: %q", got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for heartbeat echo")
	}
}

func TestClientDropsOldestOnSlowSubscriber(t *testing.T) {
	wsURL := newTestServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 3; i++ {
			conn.WriteMessage(websocket.TextMessage, []byte(encodeBarUpdate(i)))
		}
		time.Sleep(100 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := New(ctx, Config{URL: wsURL, BufferSize: 1}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.Subscribe() // never drained

	if err := client.Run(ctx); err == nil {
		t.Fatal("expected Run to return an error once the server closes the connection")
	}

	if client.DropCount() == 0 {
		t.Fatal("expected at least one dropped event for an undrained subscriber")
	}
}
