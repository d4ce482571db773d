package brain

import (
	"math"

	"github.com/pacarena/server/internal/maze"
	"github.com/pacarena/server/internal/pathfinder"
)

// Reference evaluation weights (spec.md §4.2).
const (
	weightDanger      = -2500.0
	weightProgress    = 200.0
	weightDist        = -3.0
	weightFrightBonus = 1200.0
	weightUrgency     = 6000.0
	weightExplore     = 150.0
	weightPositional  = 80.0
	weightChoke       = -800.0

	sentinelDeath = -100000.0
	sentinelWin   = math.MaxFloat64 / 2

	safeExplorationRadius = 12
	urgencyGhostRadius    = 8
	exploreFoodRadius     = 6
	exploreGhostRadius    = 8
	positionalFloodDepth  = 6
	positionalSafeRadius  = 4
	chokeWindowRadius     = 7
	chokeMinExits         = 3
)

// DefensiveBrain implements spec.md §4.2: bounded-depth predictive lookahead
// with a deterministic single-move ghost projection standing in for the
// adversarial (min) layer, in the style of the teacher's alpha-beta search
// over rules.NextState (executor/mcts/search.go), but replacing the PUCT
// tree with a plain recursive minimax since ghosts are not searched.
type DefensiveBrain struct {
	Depth int
}

// NewDefensiveBrain clamps depth into the [1, 20] range spec.md §9 resolves
// the ambiguous setSearchDepth clamp bug toward.
func NewDefensiveBrain(depth int) *DefensiveBrain {
	return &DefensiveBrain{Depth: clampDepth(depth)}
}

// simGhost is a ghost's simulated state during lookahead.
type simGhost struct {
	pos        maze.Position
	facing     maze.Direction
	frightened bool
}

// simState is the lightweight, cloned-per-branch node state the search
// walks. Dots/Pellets/food counts stay in the shared, read-only Snapshot;
// only what a branch has locally eaten diverges.
type simState struct {
	pacman     maze.Position
	prevPacman maze.Position
	ghosts     []simGhost
	eatenDots  map[maze.Position]bool
	eatenFood  int // dots + pellets consumed along this branch
}

func newSimState(s *Snapshot) simState {
	ghosts := make([]simGhost, len(s.Ghosts))
	for i, g := range s.Ghosts {
		ghosts[i] = simGhost{pos: g.Position, facing: g.Direction, frightened: g.Frightened}
	}
	return simState{
		pacman:     s.PacmanPos,
		prevPacman: s.PreviousPacmanPos,
		ghosts:     ghosts,
		eatenDots:  map[maze.Position]bool{},
	}
}

func (st simState) clone() simState {
	eaten := make(map[maze.Position]bool, len(st.eatenDots))
	for k := range st.eatenDots {
		eaten[k] = true
	}
	ghosts := make([]simGhost, len(st.ghosts))
	copy(ghosts, st.ghosts)
	return simState{
		pacman:     st.pacman,
		prevPacman: st.prevPacman,
		ghosts:     ghosts,
		eatenDots:  eaten,
		eatenFood:  st.eatenFood,
	}
}

func (st simState) hasFood(s *Snapshot, p maze.Position) (dot, pellet bool) {
	if st.eatenDots[p] {
		return false, false
	}
	return s.Dots[p], s.Pellets[p]
}

func (st simState) foodRemaining(s *Snapshot) int {
	return s.FoodCount() - st.eatenFood
}

func (st simState) nearestNonFrightened(m *maze.Maze, p maze.Position) (int, bool) {
	best := -1
	for _, g := range st.ghosts {
		if g.frightened {
			continue
		}
		d := manhattanWithTeleports(m, p, g.pos)
		if best == -1 || d < best {
			best = d
		}
	}
	return best, best != -1
}

func (st simState) nearestFrightened(m *maze.Maze, p maze.Position) (int, bool) {
	best := -1
	for _, g := range st.ghosts {
		if !g.frightened {
			continue
		}
		d := manhattanWithTeleports(m, p, g.pos)
		if best == -1 || d < best {
			best = d
		}
	}
	return best, best != -1
}

func (st simState) nearestFoodDistance(m *maze.Maze, s *Snapshot, p maze.Position) (int, bool) {
	best := -1
	for pos := range s.Dots {
		if st.eatenDots[pos] {
			continue
		}
		d := manhattanWithTeleports(m, p, pos)
		if best == -1 || d < best {
			best = d
		}
	}
	for pos := range s.Pellets {
		if st.eatenDots[pos] {
			continue
		}
		d := manhattanWithTeleports(m, p, pos)
		if best == -1 || d < best {
			best = d
		}
	}
	return best, best != -1
}

// projectGhost implements the ghost projection rule (spec.md §4.2): keep
// facing if walkable and it does not move the ghost more than 5 tiles
// farther from Pac-Man; otherwise take the neighbor that most reduces the
// distance.
func projectGhost(m *maze.Maze, g simGhost, pacman maze.Position) simGhost {
	curDist := manhattanWithTeleports(m, g.pos, pacman)
	if next := g.pos.Add(g.facing); m.IsWalkable(next) {
		nd := manhattanWithTeleports(m, next, pacman)
		if nd <= curDist+5 {
			return simGhost{pos: m.ApplyTeleport(next), facing: g.facing, frightened: g.frightened}
		}
	}
	bestPos := g.pos
	bestFacing := g.facing
	bestDist := curDist
	for _, d := range maze.AllDirections {
		next := g.pos.Add(d)
		if !m.IsWalkable(next) {
			continue
		}
		nd := manhattanWithTeleports(m, next, pacman)
		if nd < bestDist {
			bestDist = nd
			bestPos = m.ApplyTeleport(next)
			bestFacing = d
		}
	}
	return simGhost{pos: bestPos, facing: bestFacing, frightened: g.frightened}
}

// FindBestDirection is spec.md §4.2's entry point.
func (b *DefensiveBrain) FindBestDirection(s *Snapshot) maze.Direction {
	if dir, ok := safeExplorationStep(s); ok {
		return dir
	}

	valid := walkableDirections(s.Maze, s.PacmanPos)
	if len(valid) == 0 {
		return s.PacmanFacing
	}

	root := newSimState(s)
	scores := make(map[maze.Direction]float64, len(valid))
	alpha, beta := math.Inf(-1), math.Inf(1)
	best := math.Inf(-1)

	for _, dir := range valid {
		next, ok := applyPacmanMove(s, root, dir)
		if !ok {
			continue
		}
		v := b.minNode(s, next, b.Depth-1, alpha, beta)
		v += evaluateTier2(s, next, next.pacman)
		scores[dir] = v
		if v > best {
			best = v
		}
		if v > alpha {
			alpha = v
		}
	}

	if len(scores) == 0 {
		return s.PacmanFacing
	}

	applyAntiDithering(s, scores, best)

	bestDir := valid[0]
	bestScore := math.Inf(-1)
	for _, dir := range valid {
		if v, ok := scores[dir]; ok && v > bestScore {
			bestScore = v
			bestDir = dir
		}
	}
	return bestDir
}

func applyAntiDithering(s *Snapshot, scores map[maze.Direction]float64, best float64) {
	cur, ok := scores[s.PacmanFacing]
	if !ok {
		return
	}
	minGhost, hasGhost := nearestGhostDistance(s)
	_, _, hasFood := NearestFood(s, s.PacmanPos)
	nearestFoodDist := 0
	if hasFood {
		_, nearestFoodDist, _ = NearestFood(s, s.PacmanPos)
	}
	exploring := (!hasGhost || minGhost >= 10) && (!hasFood || nearestFoodDist >= 8)
	mag := math.Abs(best)
	if exploring {
		scores[s.PacmanFacing] = cur + 0.15*mag
		return
	}
	if mag == 0 || best-cur < 0.05*mag {
		scores[s.PacmanFacing] = cur + 0.05*mag
	}
}

func nearestGhostDistance(s *Snapshot) (int, bool) {
	_, d, ok := nearestGhost(s, s.PacmanPos, false)
	return d, ok
}

func walkableDirections(m *maze.Maze, p maze.Position) []maze.Direction {
	var out []maze.Direction
	for _, d := range maze.AllDirections {
		if m.IsWalkable(p.Add(d)) {
			out = append(out, d)
		}
	}
	return out
}

// applyPacmanMove simulates the max-node move: apply teleport, consume food,
// arm frightened locally is not modeled (frightening only affects ghosts'
// `frightened` flag, which within a single search horizon of at most 20
// plies of 50ms each — one second — does not flip, so the search treats
// ghost frightened status as fixed for the duration of a single decision).
func applyPacmanMove(s *Snapshot, cur simState, dir maze.Direction) (simState, bool) {
	next := cur.pacman.Add(dir)
	if !s.Maze.IsWalkable(next) {
		return simState{}, false
	}
	next = s.Maze.ApplyTeleport(next)
	branch := cur.clone()
	branch.prevPacman = cur.pacman
	branch.pacman = next
	if dot, pellet := branch.hasFood(s, next); dot || pellet {
		branch.eatenDots[next] = true
		branch.eatenFood++
	}
	return branch, true
}

// minNode applies the ghost projection to every ghost, checks for capture,
// and recurses into the next max node (or evaluates at the horizon).
func (b *DefensiveBrain) minNode(s *Snapshot, st simState, depthLeft int, alpha, beta float64) float64 {
	projected := make([]simGhost, len(st.ghosts))
	for i, g := range st.ghosts {
		projected[i] = projectGhost(s.Maze, g, st.pacman)
	}
	nextState := st
	nextState.ghosts = projected

	for i, g := range projected {
		if g.frightened {
			continue
		}
		if g.pos == nextState.pacman {
			return sentinelDeath
		}
		// swap collision: ghost's previous cell equals pacman's new cell
		// and vice versa.
		if st.ghosts[i].pos == nextState.pacman && g.pos == st.prevPacman {
			return sentinelDeath
		}
	}

	if nextState.foodRemaining(s) <= 0 {
		return sentinelWin
	}

	if depthLeft <= 0 {
		return evaluateTier1(s, nextState, nextState.pacman)
	}
	return b.maxNode(s, nextState, depthLeft, alpha, beta)
}

func (b *DefensiveBrain) maxNode(s *Snapshot, st simState, depthLeft int, alpha, beta float64) float64 {
	valid := walkableDirections(s.Maze, st.pacman)
	if len(valid) == 0 {
		return evaluateTier1(s, st, st.pacman)
	}
	best := math.Inf(-1)
	for _, dir := range valid {
		branch, ok := applyPacmanMove(s, st, dir)
		if !ok {
			continue
		}
		v := b.minNode(s, branch, depthLeft-1, alpha, beta)
		if v > best {
			best = v
		}
		if v > alpha {
			alpha = v
		}
		if beta <= alpha {
			break
		}
	}
	return best
}

// evaluateTier1 computes leaf components 1-6 of spec.md §4.2. Terminal wins
// are handled by the caller before reaching here; a shared-cell capture is
// already filtered out in minNode, so this only scores survivable leaves.
func evaluateTier1(s *Snapshot, st simState, at maze.Position) float64 {
	if st.foodRemaining(s) <= 0 {
		return sentinelWin
	}

	var total float64

	if d, ok := st.nearestNonFrightened(s.Maze, at); ok {
		total += weightDanger / float64(d+1)

		_, pellet := st.hasFood(s, at)
		if pellet && d <= urgencyGhostRadius {
			total += weightUrgency / float64(d+1)
		}
	}

	total += float64(s.InitialFoodCount-st.foodRemaining(s)) * weightProgress

	if d, ok := st.nearestFoodDistance(s.Maze, s, at); ok {
		total += float64(d) * weightDist
	}

	if d, ok := st.nearestFrightened(s.Maze, at); ok {
		total += weightFrightBonus / float64(d+1)
	}

	nearFood, hasFood := st.nearestFoodDistance(s.Maze, s, at)
	nearGhost, hasGhost := st.nearestNonFrightened(s.Maze, at)
	if (!hasFood || nearFood > exploreFoodRadius) && (!hasGhost || nearGhost > exploreGhostRadius) {
		total += weightExplore
	}

	return total
}

// evaluateTier2 adds the expensive root-only components 7-8 for a candidate
// move's resulting position.
func evaluateTier2(s *Snapshot, st simState, at maze.Position) float64 {
	return positionalAdvantage(s, st, at) + chokePointDanger(s, st, at)
}

func positionalAdvantage(s *Snapshot, st simState, at maze.Position) float64 {
	visited := map[maze.Position]int{at: 0}
	queue := []maze.Position{at}
	safeTiles := 0
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		depth := visited[p]
		if isSafeFromGhosts(s.Maze, st, p, positionalSafeRadius) {
			safeTiles++
		}
		if depth >= positionalFloodDepth {
			continue
		}
		for _, n := range s.Maze.Neighbors(p) {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = depth + 1
			queue = append(queue, n)
		}
	}
	return float64(safeTiles) * weightPositional
}

func isSafeFromGhosts(m *maze.Maze, st simState, p maze.Position, radius int) bool {
	for _, g := range st.ghosts {
		if g.frightened {
			continue
		}
		if manhattanWithTeleports(m, p, g.pos) < radius {
			return false
		}
	}
	return true
}

func chokePointDanger(s *Snapshot, st simState, at maze.Position) float64 {
	var total float64
	for y := at.Y - chokeWindowRadius; y <= at.Y+chokeWindowRadius; y++ {
		for x := at.X - chokeWindowRadius; x <= at.X+chokeWindowRadius; x++ {
			p := maze.Position{X: x, Y: y}
			if !s.Maze.IsWalkable(p) {
				continue
			}
			if p.ManhattanTo(at) > chokeWindowRadius {
				continue
			}
			if len(s.Maze.Neighbors(p)) < chokeMinExits {
				continue
			}
			for _, g := range st.ghosts {
				if g.frightened {
					continue
				}
				d := manhattanWithTeleports(s.Maze, p, g.pos)
				total += weightChoke / float64(d+1)
			}
		}
	}
	return total
}

// safeExplorationStep is spec.md §4.2's fast path: far from every
// non-frightened ghost, just walk toward the nearest food deterministically.
// Food on Pac-Man's own cell is skipped; distance ties go to the smaller Y,
// then the smaller X.
func safeExplorationStep(s *Snapshot) (maze.Direction, bool) {
	minGhost, hasGhost := nearestGhostDistance(s)
	if hasGhost && minGhost <= safeExplorationRadius {
		return 0, false
	}
	target, bestDist := maze.Position{}, -1
	for _, food := range []map[maze.Position]bool{s.Dots, s.Pellets} {
		for pos := range food {
			d := manhattanWithTeleports(s.Maze, s.PacmanPos, pos)
			if pos != s.PacmanPos && (bestDist == -1 || d < bestDist ||
				d == bestDist && (pos.Y < target.Y || pos.Y == target.Y && pos.X < target.X)) {
				target, bestDist = pos, d
			}
		}
	}
	if bestDist == -1 {
		return 0, false
	}
	path := pathfinder.AStar(s.Maze, s.PacmanPos, target)
	if len(path) < 2 {
		return 0, false
	}
	return maze.DirectionToward(path[0], path[1]), true
}
