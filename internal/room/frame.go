package room

import "github.com/pacarena/server/internal/maze"

// PacmanView is the always-present Pac-Man portion of a state or delta
// frame (spec.md §6).
type PacmanView struct {
	Position  maze.Position `json:"position"`
	Direction maze.Direction `json:"direction"`
	Emote     string        `json:"emote,omitempty"`
}

// PlayerView is the always-present per-player portion of a frame.
type PlayerView struct {
	ConnectionID string        `json:"connectionId"`
	Name         string        `json:"name,omitempty"`
	Ghost        GhostIdentity `json:"ghost,omitempty"`
	Position     maze.Position `json:"position"`
	Direction    maze.Direction `json:"direction"`
	State        PlayerState   `json:"state"`
}

// FullState is the complete snapshot sent on join / explicit request /
// game start (spec.md §6 "gameState").
type FullState struct {
	RoomCode        string       `json:"roomCode"`
	Mode            GameMode     `json:"mode"`
	Score           int          `json:"score"`
	CaptureCount    int          `json:"captureCount"`
	StepCount       int          `json:"stepCount"`
	TimeRemainingMs int64        `json:"timeRemainingMs"`
	Pacman          PacmanView   `json:"pacman"`
	Players         []PlayerView `json:"players"`
	Dots            []maze.Position `json:"dots"`
	PowerPellets    []maze.Position `json:"powerPellets"`
}

// DeltaFrame is the per-tick update (spec.md §6 "gameUpdate"). Pointer
// fields are nil when unchanged since the last broadcast; the caller must
// omit them from the wire encoding.
type DeltaFrame struct {
	Pacman       PacmanView   `json:"pacman"`
	Players      []PlayerView `json:"players"`
	Score        *int         `json:"score,omitempty"`
	CaptureCount *int         `json:"captureCount,omitempty"`
	Mode         *GameMode    `json:"mode,omitempty"`
	Dots         []maze.Position `json:"dots,omitempty"`
	PowerPellets []maze.Position `json:"powerPellets,omitempty"`
}

// changeTracker holds the previous-broadcast values a delta frame diffs
// against.
type changeTracker struct {
	lastScore        int
	lastCaptureCount int
	lastMode         GameMode
	lastEmote        string
	initialized      bool
}

func (t *changeTracker) diff(r *GameRoom, eatenDots, eatenPellets []maze.Position) DeltaFrame {
	d := DeltaFrame{
		Pacman:  PacmanView{Position: r.pacman, Direction: r.pacmanFacing},
		Players: r.playerViews(),
	}
	if len(eatenDots) > 0 {
		d.Dots = eatenDots
	}
	if len(eatenPellets) > 0 {
		d.PowerPellets = eatenPellets
	}
	if !t.initialized || r.score != t.lastScore {
		score := r.score
		d.Score = &score
	}
	if !t.initialized || r.captureCount != t.lastCaptureCount {
		cc := r.captureCount
		d.CaptureCount = &cc
	}
	if !t.initialized || r.mode != t.lastMode {
		mode := r.mode
		d.Mode = &mode
	}
	if !t.initialized || r.emote != t.lastEmote {
		d.Pacman.Emote = r.emote
	}
	t.lastScore = r.score
	t.lastCaptureCount = r.captureCount
	t.lastMode = r.mode
	t.lastEmote = r.emote
	t.initialized = true
	return d
}

func playerFacingView(r *GameRoom) PacmanView {
	return PacmanView{Position: r.pacman, Direction: r.pacmanFacing, Emote: r.emote}
}

func (r *GameRoom) playerViews() []PlayerView {
	views := make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		views = append(views, PlayerView{
			ConnectionID: p.ConnectionID,
			Name:         p.Name,
			Ghost:        p.Ghost,
			Position:     p.Position,
			Direction:    p.Facing,
			State:        p.State,
		})
	}
	return views
}

// snapshotFullState builds the complete state DTO under the room's lock.
func (r *GameRoom) snapshotFullState() FullState {
	dots := make([]maze.Position, 0, len(r.dots))
	for p := range r.dots {
		dots = append(dots, p)
	}
	pellets := make([]maze.Position, 0, len(r.pellets))
	for p := range r.pellets {
		pellets = append(pellets, p)
	}
	return FullState{
		RoomCode:        r.code,
		Mode:            r.mode,
		Score:           r.score,
		CaptureCount:    r.captureCount,
		StepCount:       r.stepCount,
		TimeRemainingMs: r.timeRemainingMs(),
		Pacman:          playerFacingView(r),
		Players:         r.playerViews(),
		Dots:            dots,
		PowerPellets:    pellets,
	}
}
