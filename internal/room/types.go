// Package room implements the per-match fixed-tick simulation engine:
// GameRoom owns one match's state, moves Pac-Man and the ghosts each tick,
// resolves collisions, drives the frightened-mode state machine, and
// emits delta frames for the transport layer to broadcast.
package room

import (
	"time"

	"github.com/pacarena/server/internal/maze"
)

// GhostIdentity is one of the four playable ghosts (spec.md §3).
type GhostIdentity string

const (
	Blinky GhostIdentity = "blinky"
	Pinky  GhostIdentity = "pinky"
	Inky   GhostIdentity = "inky"
	Clyde  GhostIdentity = "clyde"
)

// AllGhostIdentities is the fixed roster of playable ghosts, also the
// room's max player count.
var AllGhostIdentities = [4]GhostIdentity{Blinky, Pinky, Inky, Clyde}

// PlayerState is a player's lifecycle state within an active match.
type PlayerState string

const (
	StateActive     PlayerState = "active"
	StateFrightened PlayerState = "frightened"
	StateRespawning PlayerState = "respawning"
)

// GameMode is the match-wide mode (spec.md §3).
type GameMode string

const (
	ModeChase      GameMode = "chase"
	ModeFrightened GameMode = "frightened"
	ModeGameOver   GameMode = "game_over"
)

// Player is one connected human, controlling a ghost.
type Player struct {
	ConnectionID string
	Name         string
	Ghost        GhostIdentity

	Position         maze.Position
	PreviousPosition maze.Position
	Facing           maze.Direction
	Buffered         *maze.Direction

	State PlayerState
	Ready bool

	RespawnAt time.Time
}

// Config carries every tunable constant spec.md §6 lists.
type Config struct {
	TickPeriod         time.Duration
	FrightenedDuration time.Duration
	RespawnDelay       time.Duration
	MatchDuration      time.Duration
	CapturesToWin      int
	BaseCaptureScore   int
	CaptureMultiplier  float64
	DotValue           int
	PowerPelletValue   int
	EmoteRefreshTicks  int
	BrainDepth         int
}

// DefaultConfig returns the reference values from spec.md §6.
func DefaultConfig() Config {
	return Config{
		TickPeriod:         50 * time.Millisecond,
		FrightenedDuration: 10 * time.Second,
		RespawnDelay:       5 * time.Second,
		MatchDuration:      180 * time.Second,
		CapturesToWin:      3,
		BaseCaptureScore:   200,
		CaptureMultiplier:  1.5,
		DotValue:           10,
		PowerPelletValue:   50,
		EmoteRefreshTicks:  3,
		BrainDepth:         12,
	}
}

// OutboundEvent is a room-produced frame for the transport layer to
// deliver. ConnectionID is empty for room-wide broadcasts.
type OutboundEvent struct {
	Type         string
	Payload      any
	ConnectionID string
}

const (
	EventGameState     = "gameState"
	EventGameUpdate    = "gameUpdate"
	EventTimerUpdate   = "timerUpdate"
	EventGameOver      = "gameOver"
	EventGameStarted   = "gameStarted"
	EventGameRestarted = "gameRestarted"
	EventPlayerLeft    = "playerLeft"
)

// MatchSummary is what a finished room reports to whoever set
// OnMatchComplete. It carries no bson/json tags of its own; callers
// translate it into their own persistence shape.
type MatchSummary struct {
	RoomCode      string
	StartedAt     time.Time
	EndedAt       time.Time
	Winner        string
	Reason        string
	FinalScore    int
	CaptureCount  int
	DotsRemaining int
	StepCount     int
}
