package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gridcraft.app/internal/protocol"
)

func TestEndpointURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":   "ws://localhost:8080/ws?token=abc",
		"https://game.example/":   "wss://game.example/ws?token=abc",
		"localhost:9000":          "ws://localhost:9000/ws?token=abc",
		"wss://game.example/base": "wss://game.example/base/ws?token=abc",
	}
	for in, want := range cases {
		got, err := EndpointURL(in, "abc")
		if err != nil || got != want {
			t.Fatalf("EndpointURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := EndpointURL("ftp://x", "t"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	c := NewClient("http://localhost:1", nil)
	if err := c.Send(protocol.Intent{Type: protocol.IntentMove}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close without connection: %v", err)
	}
}

func TestClientRoundTrip(t *testing.T) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	got := make(chan protocol.Intent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" || r.URL.Query().Get("token") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"type":"msg","result":{"text":"one"}}`,
			`not json`,
			`{"result":{}}`,
			`{"type":"msg","result":{"text":"two"},"req_id":"r1"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in protocol.Intent
		if json.Unmarshal(b, &in) == nil {
			got <- in
		}
		// Hold the socket until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bad := NewClient(srv.URL, nil)
	if err := bad.Connect(ctx, "wrong"); err == nil {
		t.Fatalf("expected handshake failure with a bad token")
	}

	c := NewClient(srv.URL, nil)
	if err := c.Connect(ctx, "secret"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	var texts []string
	for len(texts) < 2 {
		select {
		case env, ok := <-c.Inbound():
			if !ok {
				t.Fatalf("inbound closed early")
			}
			var m protocol.MsgResult
			if err := env.Decode(&m); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			texts = append(texts, m.Text)
			if m.Text == "two" && env.ReqID != "r1" {
				t.Fatalf("req_id lost: %+v", env)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for frames")
		}
	}
	if texts[0] != "one" || texts[1] != "two" {
		t.Fatalf("frames out of order: %v", texts)
	}

	move := protocol.Intent{Type: protocol.IntentMove, Data: protocol.MoveData{X: 1, Z: 0, Side: "right"}}
	if err := c.Send(move); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case in := <-got:
		if in.Type != protocol.IntentMove {
			t.Fatalf("server got %+v", in)
		}
	case <-ctx.Done():
		t.Fatalf("server never received the intent")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-c.Inbound(); ok {
		t.Fatalf("inbound should be closed after Close")
	}
	if err := c.Send(move); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send after Close: %v", err)
	}
}
