package pathfinder

import (
	"testing"

	"github.com/pacarena/server/internal/maze"
)

func TestAStarTrivial(t *testing.T) {
	m := maze.Reference()
	src, _ := m.Start("pacman")
	path := AStar(m, src, src)
	if len(path) != 1 || path[0] != src {
		t.Fatalf("AStar(src, src) = %v, want [src]", path)
	}
}

func TestAStarReachesAdjacentCell(t *testing.T) {
	m := maze.Reference()
	src, _ := m.Start("pacman")
	neighbors := m.Neighbors(src)
	if len(neighbors) == 0 {
		t.Fatal("pacman start has no neighbors")
	}
	dst := neighbors[0]

	path := AStar(m, src, dst)
	if len(path) == 0 {
		t.Fatal("expected a path")
	}
	if path[0] != src || path[len(path)-1] != dst {
		t.Fatalf("path endpoints = (%v, %v), want (%v, %v)", path[0], path[len(path)-1], src, dst)
	}
	for i := 1; i < len(path); i++ {
		if !adjacentOrTeleport(m, path[i-1], path[i]) {
			t.Fatalf("path step %v -> %v is not a legal move", path[i-1], path[i])
		}
	}
}

func adjacentOrTeleport(m *maze.Maze, a, b maze.Position) bool {
	for _, d := range maze.AllDirections {
		if a.Add(d) == b {
			return true
		}
	}
	return m.ApplyTeleport(a) == b
}

func TestAStarUnreachableReturnsNil(t *testing.T) {
	m := maze.Reference()
	path := AStar(m, maze.Position{X: -1, Y: -1}, maze.Position{X: 0, Y: 0})
	if path != nil {
		t.Fatalf("expected nil path for out-of-bounds src, got %v", path)
	}
}

func TestHeuristicUsesTeleportShortcut(t *testing.T) {
	m := maze.Reference()
	tp := m.TeleportPairs()[0]
	direct := tp.Entry.ManhattanTo(tp.Exit)
	h := Heuristic(m, tp.Entry, tp.Exit)
	if h > 1 {
		t.Fatalf("Heuristic across a teleport pair = %d, want <= 1 (direct manhattan was %d)", h, direct)
	}
}
