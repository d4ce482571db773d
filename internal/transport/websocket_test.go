package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/registry"
	"github.com/pacarena/server/internal/room"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	m := maze.Reference()
	cfg := room.DefaultConfig()
	cfg.TickPeriod = 5 * time.Millisecond
	reg := registry.New(m, cfg, nil, false, nil, nil, nil)
	s := NewServer(reg, nil)

	router := NewRouter(s)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return env
}

func TestWebSocketCreateAndJoinRoom(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	writeEnvelope(t, conn, "createRoom", nil)
	created := readEnvelope(t, conn)
	if created.Type != "createRoom" {
		t.Fatalf("expected createRoom result, got %q", created.Type)
	}
	var result createRoomResultPayload
	if err := json.Unmarshal(created.Payload, &result); err != nil {
		t.Fatalf("unmarshal createRoom payload: %v", err)
	}
	if !result.Ok || result.RoomCode == "" {
		t.Fatalf("expected a successful room code, got %+v", result)
	}

	writeEnvelope(t, conn, "joinRoom", joinRoomPayload{
		RoomCode:      result.RoomCode,
		Username:      "Alice",
		GhostIdentity: string(room.Blinky),
	})

	ack := readEnvelope(t, conn)
	if ack.Type != "joinRoom" {
		t.Fatalf("expected joinRoom ack, got %q", ack.Type)
	}
	var ackPl ackPayload
	if err := json.Unmarshal(ack.Payload, &ackPl); err != nil {
		t.Fatalf("unmarshal ack payload: %v", err)
	}
	if !ackPl.Ok {
		t.Fatalf("expected join to succeed, got error %q", ackPl.Error)
	}

	state := readEnvelope(t, conn)
	if state.Type != room.EventGameState {
		t.Fatalf("expected gameState after join, got %q", state.Type)
	}
}

func TestWebSocketJoinUnknownRoomFails(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	writeEnvelope(t, conn, "joinRoom", joinRoomPayload{
		RoomCode:      "ZZZZ",
		Username:      "Alice",
		GhostIdentity: string(room.Blinky),
	})

	ack := readEnvelope(t, conn)
	var ackPl ackPayload
	if err := json.Unmarshal(ack.Payload, &ackPl); err != nil {
		t.Fatalf("unmarshal ack payload: %v", err)
	}
	if ackPl.Ok {
		t.Fatal("expected join against an unknown room code to fail")
	}
}

func TestWebSocketUnknownMessageTypeReturnsError(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	writeEnvelope(t, conn, "notAType", nil)
	env := readEnvelope(t, conn)
	if env.Type != "error" {
		t.Fatalf("expected an error frame, got %q", env.Type)
	}
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env := Envelope{Type: msgType, Payload: data}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
}
