package brain

import (
	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/pathfinder"
)

const hunterDitherRadius = 5

// HunterBrain implements spec.md §4.3: chase the nearest frightened ghost
// with A*, falling back to camping the ghost house when none remain.
type HunterBrain struct{}

// NewHunterBrain constructs a HunterBrain. It carries no configuration; the
// zero value is ready to use.
func NewHunterBrain() *HunterBrain {
	return &HunterBrain{}
}

// Decide returns the direction to move this tick.
func (h *HunterBrain) Decide(s *Snapshot) maze.Direction {
	target, dist, ok := nearestFrightenedGhost(s)
	if !ok {
		return h.campGhostHouse(s)
	}

	path := pathfinder.AStar(s.Maze, s.PacmanPos, target.Position)
	if len(path) < 2 {
		return s.PacmanFacing
	}
	direct := maze.DirectionToward(path[0], path[1])

	if dist > hunterDitherRadius && keepsFacingNearOptimal(s, target.Position, dist) {
		return s.PacmanFacing
	}
	return direct
}

func nearestFrightenedGhost(s *Snapshot) (GhostObservation, int, bool) {
	return nearestGhost(s, s.PacmanPos, true)
}

// keepsFacingNearOptimal returns true if continuing in the current facing
// leads to a cell whose distance to target is within 1 of the optimal
// distance, per spec.md §4.3's anti-dithering rule.
func keepsFacingNearOptimal(s *Snapshot, target maze.Position, optimalDist int) bool {
	next := s.PacmanPos.Add(s.PacmanFacing)
	if !s.Maze.IsWalkable(next) {
		return false
	}
	next = s.Maze.ApplyTeleport(next)
	return manhattanWithTeleports(s.Maze, next, target)-1 <= optimalDist
}

// campGhostHouse paths toward the ghost house center; once there, keeps the
// current facing if walkable, else the first walkable neighbor.
func (h *HunterBrain) campGhostHouse(s *Snapshot) maze.Direction {
	center, ok := s.Maze.Start("ghostHouse")
	if !ok {
		return s.PacmanFacing
	}
	if s.PacmanPos == center {
		if s.Maze.IsWalkable(s.PacmanPos.Add(s.PacmanFacing)) {
			return s.PacmanFacing
		}
		for _, d := range maze.AllDirections {
			if s.Maze.IsWalkable(s.PacmanPos.Add(d)) {
				return d
			}
		}
		return s.PacmanFacing
	}
	path := pathfinder.AStar(s.Maze, s.PacmanPos, center)
	if len(path) < 2 {
		return s.PacmanFacing
	}
	return maze.DirectionToward(path[0], path[1])
}
