package brain

import (
	"testing"

	"github.com/pacarena/server/internal/maze"
)

func TestPacmanControllerPrefersHunterWhenFrightenedWithTimeLeft(t *testing.T) {
	s := referenceSnapshot(t)
	s.FrightenedRemainingMS = 5000
	s.Ghosts = []GhostObservation{{Position: s.PacmanPos.Add(maze.Right), Frightened: true}}

	c := NewPacmanController(6, nil, false)
	dir := c.Decide(s)
	if !s.Maze.IsWalkable(s.PacmanPos.Add(dir)) {
		t.Fatalf("Decide returned unwalkable direction %v", dir)
	}
	if want := c.Hunter.Decide(s); dir != want {
		t.Fatalf("Decide = %v, want the hunter's choice %v", dir, want)
	}
}

func TestPacmanControllerFallsBackToDefensiveWhenFrightenedNearlyOver(t *testing.T) {
	s := referenceSnapshot(t)
	s.FrightenedRemainingMS = 500

	c := NewPacmanController(4, nil, false)
	if c.UseTabular() {
		t.Fatal("UseTabular should be false without a loaded policy")
	}
	dir := c.Decide(s)
	if !s.Maze.IsWalkable(s.PacmanPos.Add(dir)) {
		t.Fatalf("Decide returned unwalkable direction %v", dir)
	}
}

func TestPacmanControllerRequiresBothLoadAndOptIn(t *testing.T) {
	p := &TabularPolicy{byTarget: map[maze.Position]map[stateKey]qVector{}}
	c := NewPacmanController(4, p, false)
	if c.UseTabular() {
		t.Fatal("UseTabular should require the room to opt in")
	}
	c2 := NewPacmanController(4, nil, true)
	if c2.UseTabular() {
		t.Fatal("UseTabular should require a loaded policy")
	}
}
