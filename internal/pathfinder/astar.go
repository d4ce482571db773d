// Package pathfinder implements teleport-aware A* over a maze.Maze, plus
// the single-step direction extraction the brains need from a path.
package pathfinder

import (
	"container/heap"

	"github.com/pacarena/server/internal/maze"
)

// Heuristic returns the teleport-aware admissible estimate spec.md §4.1
// defines: the plain Manhattan distance, or (if shorter) routing through
// any teleport pair.
func Heuristic(m *maze.Maze, a, b maze.Position) int {
	best := a.ManhattanTo(b)
	for _, tp := range m.TeleportPairs() {
		viaEntry := a.ManhattanTo(tp.Entry) + 1 + tp.Exit.ManhattanTo(b)
		if viaEntry < best {
			best = viaEntry
		}
	}
	return best
}

// GhostAvoidance inflates the cost of cells near ghosts, used only by the
// fallback pathfinding mode (spec.md §4.1). Radius <= 0 disables it.
type GhostAvoidance struct {
	Ghosts  []maze.Position
	Radius  int
	Penalty float64
}

func (g GhostAvoidance) extraCost(p maze.Position) float64 {
	if g.Radius <= 0 {
		return 0
	}
	total := 0.0
	for _, gp := range g.Ghosts {
		d := p.ManhattanTo(gp)
		if d < g.Radius {
			total += float64(g.Radius-d) * g.Penalty
		}
	}
	return total
}

type pqEntry struct {
	pos      maze.Position
	f        float64
	seq      int // FIFO tie-break among equal-f entries
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x any) {
	e := x.(*pqEntry)
	e.index = len(*pq)
	*pq = append(*pq, e)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return e
}

// AStar returns a shortest path from src to dst, inclusive of both
// endpoints. It returns nil if unreachable, and []maze.Position{src} if
// src == dst.
func AStar(m *maze.Maze, src, dst maze.Position) []maze.Position {
	return aStar(m, src, dst, GhostAvoidance{})
}

// AStarAvoiding is the ghost-avoidance variant used by the fallback
// pathfinding mode (spec.md §4.1): cells within avoidance.Radius of any
// ghost get an inflated g-cost.
func AStarAvoiding(m *maze.Maze, src, dst maze.Position, avoidance GhostAvoidance) []maze.Position {
	return aStar(m, src, dst, avoidance)
}

func aStar(m *maze.Maze, src, dst maze.Position, avoidance GhostAvoidance) []maze.Position {
	if src == dst {
		return []maze.Position{src}
	}
	if !m.IsWalkable(src) || !m.IsWalkable(dst) {
		return nil
	}

	gScore := map[maze.Position]float64{src: 0}
	cameFrom := map[maze.Position]maze.Position{}
	closed := map[maze.Position]bool{}

	pq := &priorityQueue{}
	heap.Init(pq)
	seq := 0
	push := func(p maze.Position, f float64) {
		heap.Push(pq, &pqEntry{pos: p, f: f, seq: seq})
		seq++
	}
	push(src, float64(Heuristic(m, src, dst)))

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqEntry)
		if closed[cur.pos] {
			continue
		}
		if cur.pos == dst {
			return reconstruct(cameFrom, src, dst)
		}
		closed[cur.pos] = true

		for _, n := range m.Neighbors(cur.pos) {
			if closed[n] {
				continue
			}
			step := 1.0 + avoidance.extraCost(n)
			tentative := gScore[cur.pos] + step
			if existing, ok := gScore[n]; !ok || tentative < existing {
				gScore[n] = tentative
				cameFrom[n] = cur.pos
				f := tentative + float64(Heuristic(m, n, dst))
				push(n, f)
			}
		}
	}
	return nil
}

func reconstruct(cameFrom map[maze.Position]maze.Position, src, dst maze.Position) []maze.Position {
	path := []maze.Position{dst}
	cur := dst
	for cur != src {
		prev, ok := cameFrom[cur]
		if !ok {
			return nil
		}
		path = append(path, prev)
		cur = prev
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// DirectionToward re-exports maze.DirectionToward for callers that only
// import pathfinder.
func DirectionToward(a, b maze.Position) maze.Direction {
	return maze.DirectionToward(a, b)
}
