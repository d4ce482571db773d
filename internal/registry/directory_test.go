package registry

import (
	"testing"
	"time"
)

func TestDirectoryUpsertAndLookup(t *testing.T) {
	dir, err := OpenDirectory(":memory:", nil)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dir.Close()

	dir.Publish(DirectoryEvent{RoomCode: "ABCD", Kind: "created", PlayerCount: 1, CreatedAt: time.Now()})

	instanceID, count, ok := dir.Lookup("ABCD")
	if !ok {
		t.Fatal("expected room ABCD to be found")
	}
	if instanceID != "local" {
		t.Fatalf("expected instanceID 'local', got %q", instanceID)
	}
	if count != 1 {
		t.Fatalf("expected playerCount 1, got %d", count)
	}
}

func TestDirectoryClosedEventDeletesRow(t *testing.T) {
	dir, err := OpenDirectory(":memory:", nil)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dir.Close()

	dir.Publish(DirectoryEvent{RoomCode: "WXYZ", Kind: "created", PlayerCount: 1, CreatedAt: time.Now()})
	dir.Publish(DirectoryEvent{RoomCode: "WXYZ", Kind: "closed"})

	if _, _, ok := dir.Lookup("WXYZ"); ok {
		t.Fatal("expected room WXYZ to be removed after closed event")
	}
}

func TestDirectorySweepRemovesExpiredRows(t *testing.T) {
	dir, err := OpenDirectory(":memory:", nil)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dir.Close()

	dir.Publish(DirectoryEvent{RoomCode: "OLD1", Kind: "created", PlayerCount: 1, CreatedAt: time.Now().Add(-2 * time.Hour)})
	dir.Sweep(time.Hour)

	if _, _, ok := dir.Lookup("OLD1"); ok {
		t.Fatal("expected expired room to be swept")
	}
}
