package brain

import (
	"testing"

	"github.com/pacarena/server/internal/maze"
)

func TestTabularPolicyUnseenTargetIsZeroVector(t *testing.T) {
	p := &TabularPolicy{byTarget: map[maze.Position]map[stateKey]qVector{}}
	v := p.lookup(maze.Position{X: 1, Y: 1}, stateKey{x: 0, y: 0, facing: 0})
	if v != (qVector{}) {
		t.Fatalf("lookup on unseen target = %v, want zero vector", v)
	}
}

func TestTabularPolicySelectActionPrefersHighestAggregate(t *testing.T) {
	s := referenceSnapshot(t)
	p := &TabularPolicy{byTarget: map[maze.Position]map[stateKey]qVector{}}

	dotTarget := s.PacmanPos
	for pos := range s.Dots {
		dotTarget = pos
		break
	}
	key := stateKey{x: int32(s.PacmanPos.X), y: int32(s.PacmanPos.Y), facing: int32(s.PacmanFacing)}
	p.insert(PolicyRow{
		TargetX: int32(dotTarget.X), TargetY: int32(dotTarget.Y),
		GridX: key.x, GridY: key.y, Facing: key.facing,
		QUp: 1, QDown: 0, QLeft: 0, QRight: 0,
	})

	dir := p.SelectAction(s)
	if !s.Maze.IsWalkable(s.PacmanPos.Add(dir)) {
		t.Fatalf("SelectAction returned unwalkable direction %v", dir)
	}
	if dir != maze.Up {
		t.Fatalf("SelectAction = %v, want Up (the only direction with a positive Q-value)", dir)
	}
}

func TestShapeGhostAdjacencyPenalizesDirectionTowardGhostMost(t *testing.T) {
	s := referenceSnapshot(t)
	adjacent := s.PacmanPos.Add(maze.Right)
	if !s.Maze.IsWalkable(adjacent) || !s.Maze.IsWalkable(s.PacmanPos.Add(maze.Left)) {
		t.Skip("reference layout changed; assumed cells not walkable")
	}
	s.Ghosts = []GhostObservation{{Position: adjacent, Direction: maze.Left, Frightened: false}}

	key := stateKey{}
	var agg qVector
	shapeGhostAdjacency(s, key, &agg)

	if agg[maze.Right] >= 0 {
		t.Fatalf("expected walking into the ghost's cell to be penalized, got %v", agg)
	}
	if agg[maze.Left] != float32(tabularDist2GhostPenalty) {
		t.Fatalf("expected walking away from the ghost to get only the distance-2 penalty, got %v", agg)
	}
}

func TestTabularPolicySelectActionAvoidsGhostAdjacentDirection(t *testing.T) {
	s := referenceSnapshot(t)
	adjacent := s.PacmanPos.Add(maze.Right)
	if !s.Maze.IsWalkable(adjacent) || !s.Maze.IsWalkable(s.PacmanPos.Add(maze.Left)) {
		t.Skip("reference layout changed; assumed cells not walkable")
	}
	s.Ghosts = []GhostObservation{{Position: adjacent, Direction: maze.Left, Frightened: false}}

	p := &TabularPolicy{byTarget: map[maze.Position]map[stateKey]qVector{}}
	key := stateKey{x: int32(s.PacmanPos.X), y: int32(s.PacmanPos.Y), facing: int32(s.PacmanFacing)}
	for pos := range s.Dots {
		p.insert(PolicyRow{
			TargetX: int32(pos.X), TargetY: int32(pos.Y),
			GridX: key.x, GridY: key.y, Facing: key.facing,
			QUp: 1, QDown: 1, QLeft: 1, QRight: 1,
		})
	}

	dir := p.SelectAction(s)
	if dir == maze.Right {
		t.Fatalf("SelectAction walked toward the adjacent non-frightened ghost despite an otherwise uniform aggregate")
	}
}
