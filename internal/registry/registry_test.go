package registry

import (
	"testing"
	"time"

	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/room"
)

type recordingPublisher struct {
	events []DirectoryEvent
}

func (p *recordingPublisher) Publish(event DirectoryEvent) {
	p.events = append(p.events, event)
}

func testRegistry(t *testing.T, pub DirectoryPublisher) *Registry {
	t.Helper()
	cfg := room.DefaultConfig()
	cfg.TickPeriod = time.Millisecond
	cfg.MatchDuration = time.Hour
	return New(maze.Reference(), cfg, nil, false, pub, nil, nil)
}

type fakeDirectoryReader struct {
	instanceID  string
	playerCount int
	ok          bool
}

func (f fakeDirectoryReader) Lookup(string) (string, int, bool) {
	return f.instanceID, f.playerCount, f.ok
}

func TestCreateRoomAllocatesUniqueCode(t *testing.T) {
	reg := testRegistry(t, nil)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		r, err := reg.CreateRoom()
		if err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if seen[r.Code()] {
			t.Fatalf("duplicate room code %s", r.Code())
		}
		seen[r.Code()] = true
		if len(r.Code()) != codeLength {
			t.Fatalf("expected code length %d, got %q", codeLength, r.Code())
		}
	}
}

func TestJoinRoomIndexesConnection(t *testing.T) {
	reg := testRegistry(t, nil)
	r, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if err := reg.JoinRoom(r.Code(), "conn-1", "Alice", room.Blinky); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	got, code, ok := reg.RoomForConnection("conn-1")
	if !ok || got != r || code != r.Code() {
		t.Fatalf("RoomForConnection: got (%v, %q, %v)", got, code, ok)
	}
}

func TestJoinRoomUnknownCodeFails(t *testing.T) {
	reg := testRegistry(t, nil)
	if err := reg.JoinRoom("ZZZZ", "conn-1", "Alice", room.Blinky); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestHandleDisconnectTearsDownEmptyRoom(t *testing.T) {
	reg := testRegistry(t, nil)
	r, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := reg.JoinRoom(r.Code(), "conn-1", "Alice", room.Blinky); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	reg.HandleDisconnect("conn-1")

	if _, ok := reg.LookupRoom(r.Code()); ok {
		t.Fatal("expected room to be torn down after last player disconnects")
	}
}

func TestCreateAndJoinPublishDirectoryEvents(t *testing.T) {
	pub := &recordingPublisher{}
	reg := testRegistry(t, pub)
	r, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := reg.JoinRoom(r.Code(), "conn-1", "Alice", room.Blinky); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if len(pub.events) < 2 {
		t.Fatalf("expected at least 2 published events, got %d", len(pub.events))
	}
	if pub.events[0].Kind != "created" {
		t.Fatalf("expected first event kind 'created', got %q", pub.events[0].Kind)
	}
}

func TestLookupDirectoryPrefersLocalRoom(t *testing.T) {
	reg := New(maze.Reference(), room.DefaultConfig(), nil, false, nil, fakeDirectoryReader{ok: true, instanceID: "other"}, nil)
	r, err := reg.CreateRoom()
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	got, remote, found := reg.LookupDirectory(r.Code())
	if !found || got != r || remote != "" {
		t.Fatalf("LookupDirectory: got (%v, %q, %v), want local room with no remote instance", got, remote, found)
	}
}

func TestLookupDirectoryFallsBackToRemoteInstance(t *testing.T) {
	reg := New(maze.Reference(), room.DefaultConfig(), nil, false, nil, fakeDirectoryReader{ok: true, instanceID: "instance-b", playerCount: 2}, nil)

	got, remote, found := reg.LookupDirectory("ZZZZ")
	if !found || got != nil || remote != "instance-b" {
		t.Fatalf("LookupDirectory: got (%v, %q, %v), want (nil, %q, true)", got, remote, found, "instance-b")
	}
}

func TestLookupDirectoryMissesWithoutReader(t *testing.T) {
	reg := testRegistry(t, nil)
	if _, _, found := reg.LookupDirectory("ZZZZ"); found {
		t.Fatal("expected LookupDirectory to miss with no directory reader configured")
	}
}
