// Package brain implements the three Pac-Man decision modules described in
// spec.md §4.2-§4.4 (DefensiveBrain, HunterBrain, TabularPolicy) plus the
// PacmanController that picks among them each tick (spec.md §4.5).
//
// Every brain is a pure function of a Snapshot: none of them hold a
// reference to room state, connections, or timers, which is what makes
// them independently testable and keeps node-eval counters from leaking
// across rooms (spec.md §9 "resist the temptation to cache brain state
// across rooms").
package brain

import "github.com/pacarena/server/internal/maze"

// GhostObservation is the immutable per-ghost view a brain receives
// (spec.md §3).
type GhostObservation struct {
	Position   maze.Position
	Direction  maze.Direction
	Frightened bool
}

// Snapshot is the read-only view of a room's state a brain decides from.
// Room constructs one fresh each tick; brains never mutate it.
type Snapshot struct {
	Maze *maze.Maze

	PacmanPos         maze.Position
	PreviousPacmanPos maze.Position
	PacmanFacing      maze.Direction

	// Dots and Pellets are keyed by position for O(1) lookup, matching
	// spec.md §3's "indexed by position key for O(1) collision lookup".
	Dots    map[maze.Position]bool
	Pellets map[maze.Position]bool

	InitialFoodCount int

	Ghosts []GhostObservation

	// FrightenedRemainingMS is 0 when mode is not FRIGHTENED.
	FrightenedRemainingMS int64

	StepCount int
}

// FoodCount returns the number of dots and pellets currently on the board.
func (s *Snapshot) FoodCount() int {
	return len(s.Dots) + len(s.Pellets)
}

// NearestFood returns the closest dot-or-pellet position to p by
// teleport-aware Manhattan distance, and whether any food remains.
func NearestFood(s *Snapshot, p maze.Position) (maze.Position, int, bool) {
	best := maze.Position{}
	bestDist := -1
	consider := func(pos maze.Position) {
		d := manhattanWithTeleports(s.Maze, p, pos)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = pos
		}
	}
	for pos := range s.Dots {
		consider(pos)
	}
	for pos := range s.Pellets {
		consider(pos)
	}
	if bestDist == -1 {
		return best, 0, false
	}
	return best, bestDist, true
}

// nearestGhost returns the closest ghost matching filter, its distance,
// and whether one was found.
func nearestGhost(s *Snapshot, p maze.Position, wantFrightened bool) (GhostObservation, int, bool) {
	best := GhostObservation{}
	bestDist := -1
	found := false
	for _, g := range s.Ghosts {
		if g.Frightened != wantFrightened {
			continue
		}
		d := manhattanWithTeleports(s.Maze, p, g.Position)
		if !found || d < bestDist {
			bestDist = d
			best = g
			found = true
		}
	}
	return best, bestDist, found
}

// manhattanWithTeleports is the same teleport-aware distance the
// pathfinder's heuristic uses, duplicated here (without importing
// pathfinder) so the hot evaluation path never allocates a path.
func manhattanWithTeleports(m *maze.Maze, a, b maze.Position) int {
	best := a.ManhattanTo(b)
	for _, tp := range m.TeleportPairs() {
		via := a.ManhattanTo(tp.Entry) + 1 + tp.Exit.ManhattanTo(b)
		if via < best {
			best = via
		}
	}
	return best
}

func clampDepth(d int) int {
	if d < 1 {
		return 1
	}
	if d > 20 {
		return 20
	}
	return d
}
