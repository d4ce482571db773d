package room

import (
	"fmt"
	"time"

	"github.com/pacarena/server/internal/brain"
	"github.com/pacarena/server/internal/maze"
)

// runTickLoop is the room's owning goroutine: it advances the match once
// per tick under mu, and every other mutation (timer callbacks and the
// GameRoom methods transport handlers call) also takes mu (spec.md §5). stopCh and doneCh are
// this run's own pair, captured by the caller at spawn time: a restarted
// match after a natural game over gets a fresh pair rather than reusing
// one this same method already closed.
func (r *GameRoom) runTickLoop(stopCh, doneCh chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.loopRunning = false
		r.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(r.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if r.tick() {
				return
			}
		}
	}
}

// startTimers arms the match deadline and the once-per-second timer
// broadcast. Both timer callbacks only ever set a flag or mutate a single
// player under mu; they never end the match themselves — that always
// happens inside the tick loop so teardown has one place to happen.
func (r *GameRoom) startTimers() {
	r.mu.Lock()
	r.matchTimer = time.AfterFunc(r.cfg.MatchDuration, r.markMatchExpired)
	r.timerTicker = time.NewTicker(1 * time.Second)
	r.mu.Unlock()

	go func() {
		for {
			select {
			case <-r.doneCh:
				return
			case <-r.timerTicker.C:
				r.mu.Lock()
				remaining := r.timeRemainingMs()
				over := r.mode == ModeGameOver
				r.mu.Unlock()
				if over {
					return
				}
				r.emit(OutboundEvent{Type: EventTimerUpdate, Payload: map[string]int64{"timeRemainingMs": remaining}})
			}
		}
	}()
}

func (r *GameRoom) markMatchExpired() {
	r.mu.Lock()
	r.matchExpired = true
	r.mu.Unlock()
}

// tick runs one fixed-period step, recovering from any panic raised while
// doing so. A panic mid-step means a broken invariant, not a transient
// fault (spec.md §7): the affected room aborts and tears down rather than
// letting the tick loop crash the whole process or, worse, keep ticking
// over corrupted state.
func (r *GameRoom) tick() (over bool) {
	defer func() {
		if rec := recover(); rec != nil {
			over = r.abortOnInvariantViolation(rec)
		}
	}()
	return r.stepLocked()
}

// abortOnInvariantViolation runs with r.mu already released (stepLocked's
// own deferred Unlock ran during the panic's unwind), so it is free to
// re-acquire the lock itself.
func (r *GameRoom) abortOnInvariantViolation(rec any) bool {
	err := &InvariantError{Room: r.code, Reason: fmt.Sprint(rec)}

	r.mu.Lock()
	r.mode = ModeGameOver
	r.stopTimersLocked()
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Error("invariant violated, aborting room", "room", r.code, "err", err)
	}
	r.emit(OutboundEvent{Type: EventGameOver, Payload: map[string]any{"reason": "internal", "error": err.Error()}})

	if r.OnTerminal != nil {
		cb := r.OnTerminal
		code := r.code
		go cb(code)
	}
	return true
}

// stepLocked runs one fixed-period step (spec.md §4.6) and reports whether
// the match ended.
func (r *GameRoom) stepLocked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == ModeGameOver {
		return true
	}

	r.previousPacman = r.pacman
	for _, p := range r.players {
		p.PreviousPosition = p.Position
	}

	r.handleEarlyCollisions()
	if r.mode == ModeGameOver {
		r.finalizeGameOverLocked()
		return true
	}

	var eatenDots, eatenPellets []maze.Position
	r.movePacman(&eatenDots, &eatenPellets)

	for _, id := range r.order {
		r.moveGhost(r.players[id])
	}

	r.handleLateCollisions()

	over := r.checkTerminal()

	if !over && r.cfg.EmoteRefreshTicks > 0 && r.stepCount%r.cfg.EmoteRefreshTicks == 0 {
		r.refreshEmote()
	}

	frame := r.tracker.diff(r, eatenDots, eatenPellets)
	r.emit(OutboundEvent{Type: EventGameUpdate, Payload: frame})

	r.stepCount++

	if over {
		r.finalizeGameOverLocked()
	}
	return over
}

// snapshotForBrain builds the read-only view PacmanController decides
// from. Respawning players are excluded: a respawning ghost is not on the
// board (spec.md §3 "a respawning player is not considered for
// collisions", extended here to mean it is not a threat either).
func (r *GameRoom) snapshotForBrain() *brain.Snapshot {
	ghosts := make([]brain.GhostObservation, 0, len(r.players))
	for _, p := range r.players {
		if p.State == StateRespawning {
			continue
		}
		ghosts = append(ghosts, brain.GhostObservation{
			Position:   p.Position,
			Direction:  p.Facing,
			Frightened: p.State == StateFrightened,
		})
	}

	var frightRemaining int64
	if r.mode == ModeFrightened {
		remaining := r.cfg.FrightenedDuration - time.Since(r.frightenedStartedAt)
		if remaining > 0 {
			frightRemaining = remaining.Milliseconds()
		}
	}

	return &brain.Snapshot{
		Maze:                  r.maze,
		PacmanPos:             r.pacman,
		PreviousPacmanPos:     r.previousPacman,
		PacmanFacing:          r.pacmanFacing,
		Dots:                  r.dots,
		Pellets:               r.pellets,
		InitialFoodCount:      r.initialFoodCount,
		Ghosts:                ghosts,
		FrightenedRemainingMS: frightRemaining,
		StepCount:             r.stepCount,
	}
}

// movePacman asks the controller for a direction and applies it if
// walkable; an unwalkable or missing direction falls back to holding
// position and facing (spec.md §7 "brain-decision failure").
func (r *GameRoom) movePacman(eatenDots, eatenPellets *[]maze.Position) {
	snap := r.snapshotForBrain()
	dir := r.controller.Decide(snap)

	next := r.pacman.Add(dir)
	if !r.maze.IsWalkable(next) {
		return
	}
	r.pacmanFacing = dir
	next = r.maze.ApplyTeleport(next)
	r.pacman = next

	switch {
	case r.dots[next]:
		delete(r.dots, next)
		r.score += r.cfg.DotValue
		*eatenDots = append(*eatenDots, next)
	case r.pellets[next]:
		delete(r.pellets, next)
		r.score += r.cfg.PowerPelletValue
		*eatenPellets = append(*eatenPellets, next)
		r.armFrightened()
	}
}

// armFrightened implements the CHASE->FRIGHTENED transition and the
// "timer is reset, not re-armed" rule (spec.md §4.6).
func (r *GameRoom) armFrightened() {
	if r.frightenedTimer != nil {
		r.frightenedTimer.Stop()
	}
	if r.mode == ModeChase {
		r.mode = ModeFrightened
		for _, p := range r.players {
			if p.State == StateActive {
				p.State = StateFrightened
			}
		}
	}
	r.frightenedStartedAt = time.Now()
	r.frightenedTimer = time.AfterFunc(r.cfg.FrightenedDuration, r.expireFrightened)
}

func (r *GameRoom) expireFrightened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != ModeFrightened {
		return
	}
	r.mode = ModeChase
	for _, p := range r.players {
		if p.State == StateFrightened {
			p.State = StateActive
		}
	}
}

// moveGhost applies a player's buffered direction if it just became legal,
// then advances one cell along the current facing (spec.md §4.6 step 4).
// A blocked ghost keeps its facing and does not move; there is no
// stopping state.
func (r *GameRoom) moveGhost(p *Player) {
	if p.State == StateRespawning {
		return
	}
	if p.Buffered != nil && r.maze.IsWalkable(p.Position.Add(*p.Buffered)) {
		p.Facing = *p.Buffered
		p.Buffered = nil
	}
	next := p.Position.Add(p.Facing)
	if r.maze.IsWalkable(next) {
		p.Position = r.maze.ApplyTeleport(next)
	}
}

// handleEarlyCollisions catches players already co-located with Pac-Man
// before anything has moved this tick (spec.md §4.6 step 2).
func (r *GameRoom) handleEarlyCollisions() {
	site := r.pacman
	for _, id := range r.order {
		p := r.players[id]
		if p.State == StateRespawning {
			continue
		}
		if p.Position == site {
			r.resolveCollision(p, site)
		}
	}
}

// handleLateCollisions resolves same-cell and swap collisions after all
// entities have moved (spec.md §4.6 step 5). Both reference points are
// captured before the loop runs: resolveCollision may itself relocate
// Pac-Man mid-loop when a capture happens, and later iterations must keep
// comparing against this tick's actual move, not a capture's reset.
func (r *GameRoom) handleLateCollisions() {
	newPacman := r.pacman
	prevPacman := r.previousPacman
	for _, id := range r.order {
		p := r.players[id]
		if p.State == StateRespawning {
			continue
		}
		sameCell := p.Position == newPacman
		swapped := p.PreviousPosition == newPacman && p.Position == prevPacman
		if sameCell || swapped {
			r.resolveCollision(p, newPacman)
		}
	}
}

// resolveCollision applies spec.md §4.6's per-state collision outcome.
// site is the position Pac-Man occupied at the moment of the collision,
// used for the capture-scoring "nearby" count.
func (r *GameRoom) resolveCollision(p *Player, site maze.Position) {
	switch p.State {
	case StateFrightened:
		p.State = StateRespawning
		ghostHouse, _ := r.maze.Start("ghostHouse")
		p.Position = ghostHouse
		p.RespawnAt = time.Now().Add(r.cfg.RespawnDelay)
		connectionID := p.ConnectionID
		time.AfterFunc(r.cfg.RespawnDelay, func() { r.completeRespawn(connectionID) })
	case StateActive:
		r.captureCount++
		nearby := 0
		for _, other := range r.players {
			if site.ManhattanTo(other.Position) < 3 {
				nearby++
			}
		}
		if nearby < 1 {
			nearby = 1
		}
		multiplier := 1.0
		for i := 0; i < nearby-1; i++ {
			multiplier *= r.cfg.CaptureMultiplier
		}
		r.score += int(float64(r.cfg.BaseCaptureScore) * multiplier)
		pacmanStart, _ := r.maze.Start("pacman")
		r.pacman = pacmanStart
	}
}

// completeRespawn resumes a respawning player once its timer fires: back
// to frightened if the match is still in that mode, else active.
func (r *GameRoom) completeRespawn(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == ModeGameOver {
		return
	}
	p, ok := r.players[connectionID]
	if !ok || p.State != StateRespawning {
		return
	}
	if r.mode == ModeFrightened {
		p.State = StateFrightened
	} else {
		p.State = StateActive
	}
	start, ok := r.maze.Start(string(p.Ghost))
	if !ok {
		start, _ = r.maze.Start("ghostHouse")
	}
	p.Position = start
	p.RespawnAt = time.Time{}
}

// checkTerminal implements spec.md §4.6's terminal conditions.
func (r *GameRoom) checkTerminal() bool {
	switch {
	case r.captureCount >= r.cfg.CapturesToWin:
		r.mode = ModeGameOver
		r.winner, r.finishReason = "ghosts", "captures"
		r.emit(OutboundEvent{Type: EventGameOver, Payload: map[string]any{"winner": "ghosts", "score": r.score}})
		return true
	case len(r.dots) == 0 && len(r.pellets) == 0:
		r.mode = ModeGameOver
		r.winner, r.finishReason = "pacman", "food_exhausted"
		r.emit(OutboundEvent{Type: EventGameOver, Payload: map[string]any{"winner": "pacman", "score": r.score}})
		return true
	case r.matchExpired:
		r.mode = ModeGameOver
		r.winner, r.finishReason = "pacman", "timeout"
		r.emit(OutboundEvent{Type: EventGameOver, Payload: map[string]any{"winner": "pacman", "reason": "timeout", "score": r.score}})
		return true
	default:
		return false
	}
}

// refreshEmote updates Pac-Man's emote band at most every EmoteRefreshTicks
// ticks (spec.md §4.6 step 7): scared while frightened, alert when an
// active ghost is within 5 tiles (Manhattan), neutral otherwise.
func (r *GameRoom) refreshEmote() {
	if r.mode == ModeFrightened {
		r.emote = "scared"
		return
	}
	nearest := -1
	for _, p := range r.players {
		if p.State != StateActive {
			continue
		}
		d := r.pacman.ManhattanTo(p.Position)
		if nearest == -1 || d < nearest {
			nearest = d
		}
	}
	if nearest != -1 && nearest <= 5 {
		r.emote = "alert"
	} else {
		r.emote = "neutral"
	}
}

// finalizeGameOverLocked stops all timers and hands teardown to the
// registry off the tick goroutine, so the registry callback can safely
// call back into the room (e.g. Stop) without deadlocking on mu.
func (r *GameRoom) finalizeGameOverLocked() {
	r.stopTimersLocked()
	if r.OnMatchComplete != nil {
		cb := r.OnMatchComplete
		summary := MatchSummary{
			RoomCode:      r.code,
			StartedAt:     r.startedAt,
			EndedAt:       time.Now(),
			Winner:        r.winner,
			Reason:        r.finishReason,
			FinalScore:    r.score,
			CaptureCount:  r.captureCount,
			DotsRemaining: len(r.dots) + len(r.pellets),
			StepCount:     r.stepCount,
		}
		go cb(summary)
	}
	if r.OnTerminal != nil {
		cb := r.OnTerminal
		code := r.code
		go cb(code)
	}
}
