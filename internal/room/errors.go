package room

import (
	"errors"
	"fmt"
)

// Client protocol errors (spec.md §7): surfaced to the caller, never abort
// the room.
var (
	ErrRoomStarted      = errors.New("room already started")
	ErrRoomFull         = errors.New("room is full")
	ErrGhostTaken       = errors.New("ghost identity already taken")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrNotAllReady      = errors.New("not all players are ready")
	ErrInvalidDirection = errors.New("direction is not one of the four cardinals")
)

// InvariantError marks an internal invariant violation (spec.md §7): the
// affected room's tick loop aborts and the room tears down.
type InvariantError struct {
	Room   string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("room %s: invariant violated: %s", e.Room, e.Reason)
}
