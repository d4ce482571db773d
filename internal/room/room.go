package room

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pacarena/server/internal/brain"
	"github.com/pacarena/server/internal/maze"
)

// GameRoom owns one match. All state below the mutex line is touched only
// while holding mu, which is acquired both by the tick goroutine and by
// inbound transport calls (addPlayer, submitInput, ...) — the same
// guarded-shared-state pattern the teacher's websocket handler uses for its
// connection map (clientsMu in the chunk_server), generalized from "protect
// a map" to "protect a whole match".
type GameRoom struct {
	code       string
	maze       *maze.Maze
	controller *brain.PacmanController
	cfg        Config
	logger     *log.Logger

	events chan OutboundEvent

	// OnTerminal is invoked once, off the tick goroutine, when the match
	// ends, so the registry can run teardown without holding the room's
	// lock.
	OnTerminal func(code string)

	// OnMatchComplete is invoked once, off the tick goroutine, alongside
	// OnTerminal, with a summary of the finished match. Left nil, no
	// summary is produced.
	OnMatchComplete func(MatchSummary)

	mu sync.Mutex

	players map[string]*Player
	order   []string // connection IDs in join order, for deterministic views

	dots    map[maze.Position]bool
	pellets map[maze.Position]bool

	pacman              maze.Position
	previousPacman      maze.Position
	pacmanFacing        maze.Direction
	mode                GameMode
	score               int
	captureCount        int
	startedAt           time.Time
	frightenedStartedAt time.Time
	stepCount           int
	started             bool
	stopped             bool
	loopRunning         bool

	emote            string
	emoteExpiry      time.Time
	initialFoodCount int
	matchExpired     bool

	winner       string
	finishReason string

	tracker changeTracker

	ticker          *time.Ticker
	matchTimer      *time.Timer
	frightenedTimer *time.Timer
	timerTicker     *time.Ticker
	stopCh          chan struct{}
	doneCh          chan struct{}
}

// New constructs an empty, unstarted room.
func New(code string, m *maze.Maze, cfg Config, controller *brain.PacmanController, logger *log.Logger) *GameRoom {
	dots := map[maze.Position]bool{}
	pellets := map[maze.Position]bool{}
	for _, p := range m.AllDots() {
		dots[p] = true
	}
	for _, p := range m.AllPowerPellets() {
		pellets[p] = true
	}
	pacmanStart, _ := m.Start("pacman")

	return &GameRoom{
		code:         code,
		maze:         m,
		controller:   controller,
		cfg:          cfg,
		logger:       logger,
		events:       make(chan OutboundEvent, 256),
		players:      map[string]*Player{},
		dots:         dots,
		pellets:      pellets,
		pacman:       pacmanStart,
		pacmanFacing: maze.Right,
		mode:         ModeChase,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Code returns the room's join code.
func (r *GameRoom) Code() string { return r.code }

// Events returns the channel of outbound frames the transport layer
// should drain. Never blocks the tick loop: emit() drops frames if this
// channel's buffer is full.
func (r *GameRoom) Events() <-chan OutboundEvent { return r.events }

func (r *GameRoom) emit(ev OutboundEvent) {
	select {
	case r.events <- ev:
	default:
		if r.logger != nil {
			r.logger.Warn("dropped outbound frame, consumer too slow", "room", r.code, "type", ev.Type)
		}
	}
}

// AddPlayer fails if the room has started, is full, or the ghost identity
// is taken (spec.md §4.6).
func (r *GameRoom) AddPlayer(connectionID, name string, ghost GhostIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRoomStarted
	}
	if len(r.players) >= len(AllGhostIdentities) {
		return ErrRoomFull
	}
	for _, p := range r.players {
		if p.Ghost == ghost {
			return ErrGhostTaken
		}
	}

	start, ok := r.maze.Start(string(ghost))
	if !ok {
		start, _ = r.maze.Start("ghostHouse")
	}
	r.players[connectionID] = &Player{
		ConnectionID: connectionID,
		Name:         name,
		Ghost:        ghost,
		Position:     start,
		Facing:       maze.Up,
		State:        StateActive,
	}
	r.order = append(r.order, connectionID)
	return nil
}

// RemovePlayer removes a player and frees their ghost identity. If this
// drops the room to zero players, the caller should schedule teardown;
// RemovePlayer reports whether the room is now empty.
func (r *GameRoom) RemovePlayer(connectionID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[connectionID]; !ok {
		return len(r.players) == 0
	}
	delete(r.players, connectionID)
	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.emit(OutboundEvent{Type: EventPlayerLeft, Payload: map[string]string{"connectionId": connectionID}})
	return len(r.players) == 0
}

// ToggleReady flips a player's ready flag.
func (r *GameRoom) ToggleReady(connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connectionID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Ready = !p.Ready
	return nil
}

// AllReady reports whether every current player is ready.
func (r *GameRoom) AllReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allReadyLocked()
}

func (r *GameRoom) allReadyLocked() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// CanStart reports whether the room may start: non-empty and all ready.
func (r *GameRoom) CanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.started && r.allReadyLocked()
}

// Start seeds positions, arms the match deadline, and begins ticking.
func (r *GameRoom) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRoomStarted
	}
	if !r.allReadyLocked() {
		r.mu.Unlock()
		return ErrNotAllReady
	}
	r.resetMatchStateLocked()
	r.started = true
	r.startedAt = time.Now()
	r.loopRunning = true
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	r.emit(OutboundEvent{Type: EventGameStarted})
	r.emit(OutboundEvent{Type: EventGameState, Payload: r.snapshotFullStateLocked()})

	r.startTimers()
	go r.runTickLoop(stopCh, doneCh)
	return nil
}

func (r *GameRoom) snapshotFullStateLocked() FullState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotFullState()
}

// resetMatchStateLocked re-seeds positions and counters; called under mu
// from both Start and Restart.
func (r *GameRoom) resetMatchStateLocked() {
	pacmanStart, _ := r.maze.Start("pacman")
	r.pacman = pacmanStart
	r.previousPacman = pacmanStart
	r.pacmanFacing = maze.Right
	r.mode = ModeChase
	r.score = 0
	r.captureCount = 0
	r.stepCount = 0
	r.emote = ""
	r.tracker = changeTracker{}

	r.dots = map[maze.Position]bool{}
	r.pellets = map[maze.Position]bool{}
	for _, p := range r.maze.AllDots() {
		r.dots[p] = true
	}
	for _, p := range r.maze.AllPowerPellets() {
		r.pellets[p] = true
	}
	r.initialFoodCount = len(r.dots) + len(r.pellets)
	r.matchExpired = false

	for _, p := range r.players {
		start, ok := r.maze.Start(string(p.Ghost))
		if !ok {
			start, _ = r.maze.Start("ghostHouse")
		}
		p.Position = start
		p.PreviousPosition = start
		p.Facing = maze.Up
		p.Buffered = nil
		p.State = StateActive
		p.RespawnAt = time.Time{}
	}
}

// Restart preserves player identities and ready flags and begins a new
// match atomically with the same room code (spec.md §6 "restartGame").
func (r *GameRoom) Restart() error {
	r.mu.Lock()
	if !r.allReadyLocked() {
		r.mu.Unlock()
		return ErrNotAllReady
	}
	r.stopTimersLocked()
	r.resetMatchStateLocked()
	r.started = true
	r.stopped = false
	r.startedAt = time.Now()

	// The previous match's tick loop may have already returned on its own
	// (a natural game over closes doneCh from inside runTickLoop), in which
	// case loopRunning is false here even though started never reset. Reusing
	// the old stopCh/doneCh pair would mean the fresh loop closes a channel
	// that is already closed, so a restart after a finished match always
	// gets its own pair.
	needsLoop := !r.loopRunning
	if needsLoop {
		r.stopCh = make(chan struct{})
		r.doneCh = make(chan struct{})
		r.loopRunning = true
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	r.emit(OutboundEvent{Type: EventGameRestarted})
	r.emit(OutboundEvent{Type: EventGameState, Payload: r.snapshotFullStateLocked()})

	r.startTimers()
	if needsLoop {
		go r.runTickLoop(stopCh, doneCh)
	}
	return nil
}

// SubmitInput buffers a direction; it is applied on the next tick if legal
// from the player's current cell (spec.md §4.6).
func (r *GameRoom) SubmitInput(connectionID string, dir maze.Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connectionID]
	if !ok {
		return ErrPlayerNotFound
	}
	d := dir
	p.Buffered = &d
	return nil
}

// CurrentState returns the full state snapshot for one requesting
// connection (spec.md §6 "requestGameState").
func (r *GameRoom) CurrentState() FullState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotFullState()
}

// Stop idempotently tears the room down: cancels timers, stops the tick
// loop, and waits for any in-flight tick to finish (spec.md §5).
func (r *GameRoom) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	wasStarted := r.started
	stopCh, doneCh := r.stopCh, r.doneCh
	r.stopTimersLocked()
	r.mu.Unlock()

	if wasStarted {
		close(stopCh)
		<-doneCh
	} else {
		close(doneCh)
	}
}

// Done reports when the room's tick loop has exited, whether the room
// ever started or was stopped before starting. Transport-layer fan-out
// goroutines use this to know when to stop forwarding a room's events.
func (r *GameRoom) Done() <-chan struct{} { return r.doneCh }

func (r *GameRoom) stopTimersLocked() {
	if r.matchTimer != nil {
		r.matchTimer.Stop()
	}
	if r.frightenedTimer != nil {
		r.frightenedTimer.Stop()
	}
	if r.timerTicker != nil {
		r.timerTicker.Stop()
	}
}

func (r *GameRoom) timeRemainingMs() int64 {
	if r.startedAt.IsZero() {
		return r.cfg.MatchDuration.Milliseconds()
	}
	remaining := r.cfg.MatchDuration - time.Since(r.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining.Milliseconds()
}
