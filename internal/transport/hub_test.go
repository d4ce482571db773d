package transport

import (
	"testing"
	"time"

	"github.com/pacarena/server/internal/brain"
	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/room"
)

func newTestRoom(t *testing.T) *room.GameRoom {
	t.Helper()
	m := maze.Reference()
	cfg := room.DefaultConfig()
	cfg.TickPeriod = time.Millisecond
	controller := brain.NewPacmanController(2, nil, false)
	return room.New("TEST", m, cfg, controller, nil)
}

func TestHubBroadcastsToAllRegisteredConnections(t *testing.T) {
	r := newTestRoom(t)
	defer r.Stop()

	h := newHub(r)
	chA := h.register("a")
	chB := h.register("b")

	go h.broadcast(room.OutboundEvent{Type: "gameUpdate", Payload: "x"})

	for _, ch := range []<-chan room.OutboundEvent{chA, chB} {
		select {
		case ev := <-ch:
			if ev.Type != "gameUpdate" {
				t.Fatalf("got type %q", ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestHubTargetedSendOnlyReachesOneConnection(t *testing.T) {
	r := newTestRoom(t)
	defer r.Stop()

	h := newHub(r)
	chA := h.register("a")
	chB := h.register("b")

	h.broadcast(room.OutboundEvent{Type: "createRoom", ConnectionID: "a"})

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("expected connection a to receive the targeted event")
	}

	select {
	case ev, ok := <-chB:
		if ok {
			t.Fatalf("connection b should not have received an event, got %v", ev)
		}
	case <-time.After(10 * time.Millisecond):
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	r := newTestRoom(t)
	defer r.Stop()

	h := newHub(r)
	ch := h.register("a")
	h.unregister("a")

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}

func TestHubRegistryReusesHubPerRoomCode(t *testing.T) {
	r := newTestRoom(t)
	defer r.Stop()

	hr := newHubRegistry()
	h1 := hr.forRoom(r)
	h2 := hr.forRoom(r)
	if h1 != h2 {
		t.Fatal("expected the same hub instance for the same room code")
	}
}

func TestHubClosesAllConnectionsWhenRoomStops(t *testing.T) {
	r := newTestRoom(t)
	h := newHub(r)
	ch := h.register("a")

	r.Stop()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel once the room stops")
		}
	case <-time.After(time.Second):
		t.Fatal("channel never closed after room stopped")
	}
}
