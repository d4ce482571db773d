package brain

import (
	"testing"

	"github.com/pacarena/server/internal/maze"
)

func referenceSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	m := maze.Reference()
	pacman, ok := m.Start("pacman")
	if !ok {
		t.Fatal("missing pacman start")
	}
	dots := map[maze.Position]bool{}
	pellets := map[maze.Position]bool{}
	for _, p := range m.AllDots() {
		dots[p] = true
	}
	for _, p := range m.AllPowerPellets() {
		pellets[p] = true
	}
	return &Snapshot{
		Maze:              m,
		PacmanPos:         pacman,
		PreviousPacmanPos: pacman,
		PacmanFacing:      maze.Right,
		Dots:              dots,
		Pellets:           pellets,
		InitialFoodCount:  len(dots) + len(pellets),
	}
}

func TestDefensiveBrainReturnsWalkableDirection(t *testing.T) {
	s := referenceSnapshot(t)
	b := NewDefensiveBrain(6)
	dir := b.FindBestDirection(s)
	if !s.Maze.IsWalkable(s.PacmanPos.Add(dir)) {
		t.Fatalf("FindBestDirection returned %v, which is not walkable from %v", dir, s.PacmanPos)
	}
}

func TestDefensiveBrainFleesAdjacentGhost(t *testing.T) {
	s := referenceSnapshot(t)
	ghostPos := s.PacmanPos.Add(maze.Right)
	if !s.Maze.IsWalkable(ghostPos) {
		t.Skip("reference layout changed; adjacent cell not walkable")
	}
	s.Ghosts = []GhostObservation{{Position: ghostPos, Direction: maze.Left, Frightened: false}}

	b := NewDefensiveBrain(8)
	dir := b.FindBestDirection(s)
	if dir == maze.Right {
		t.Fatalf("FindBestDirection walked toward an adjacent non-frightened ghost")
	}
}

func TestNewDefensiveBrainClampsDepth(t *testing.T) {
	if got := NewDefensiveBrain(0).Depth; got != 1 {
		t.Errorf("depth 0 clamped to %d, want 1", got)
	}
	if got := NewDefensiveBrain(99).Depth; got != 20 {
		t.Errorf("depth 99 clamped to %d, want 20", got)
	}
}

func TestSafeExplorationStepHeadsTowardFood(t *testing.T) {
	s := referenceSnapshot(t)
	dir, ok := safeExplorationStep(s)
	if !ok {
		t.Fatal("expected safe exploration to trigger with no ghosts present")
	}
	if !s.Maze.IsWalkable(s.PacmanPos.Add(dir)) {
		t.Fatalf("safeExplorationStep returned unwalkable direction %v", dir)
	}
}

func TestEvaluateTier1UrgencyBonusFiresOnlyOnPowerPellet(t *testing.T) {
	s := referenceSnapshot(t)
	at := s.PacmanPos
	ghostPos := at.Add(maze.Right)
	if !s.Maze.IsWalkable(ghostPos) {
		t.Skip("reference layout changed; adjacent cell not walkable")
	}
	s.Ghosts = []GhostObservation{{Position: ghostPos, Direction: maze.Left, Frightened: false}}

	s.Dots = map[maze.Position]bool{at: true}
	s.Pellets = map[maze.Position]bool{}
	dotScore := evaluateTier1(s, newSimState(s), at)

	s.Dots = map[maze.Position]bool{}
	s.Pellets = map[maze.Position]bool{at: true}
	pelletScore := evaluateTier1(s, newSimState(s), at)

	if pelletScore-dotScore < weightUrgency/float64(urgencyGhostRadius+1) {
		t.Fatalf("expected the power-pellet score to exceed the plain-dot score by the urgency bonus, dot=%v pellet=%v", dotScore, pelletScore)
	}
}

func TestProjectGhostKeepsFacingWhenSafe(t *testing.T) {
	m := maze.Reference()
	start, _ := m.Start("pacman")
	g := simGhost{pos: start.Add(maze.Left), facing: maze.Left, frightened: false}
	if !m.IsWalkable(g.pos) || !m.IsWalkable(g.pos.Add(maze.Left)) {
		t.Skip("reference layout changed; assumed cells not walkable")
	}
	next := projectGhost(m, g, start)
	if next.facing != maze.Left {
		t.Errorf("projectGhost changed facing from %v to %v when continuing was safe", maze.Left, next.facing)
	}
}
