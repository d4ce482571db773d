package brain

import (
	"fmt"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/pacarena/server/internal/maze"
)

const tabularSchemaVersion = "policy_row_v1"

// Reference aggregation weights (spec.md §4.4).
const (
	tabularWeightDot            = 10.0
	tabularWeightPellet         = 50.0
	tabularWeightNonFrightGhost = -1000.0
	tabularWeightFrightGhost    = 1000.0
	tabularAdjacentGhostPenalty = -500.0
	tabularDist2GhostPenalty    = -250.0
	tabularWithin4GhostPenalty  = -100.0
	tabularWithin8GhostPenalty  = -50.0
)

// PolicyRow is a single (target position, state) entry of the on-disk
// tabular policy, stored in Parquet the way the teacher stores its
// TrainingRow/ArchiveTurnRow batches (scraper/store/parquet.go).
type PolicyRow struct {
	TargetX int32   `parquet:"target_x"`
	TargetY int32   `parquet:"target_y"`
	GridX   int32   `parquet:"grid_x"`
	GridY   int32   `parquet:"grid_y"`
	Facing  int32   `parquet:"facing"`
	QUp     float32 `parquet:"q_up"`
	QDown   float32 `parquet:"q_down"`
	QLeft   float32 `parquet:"q_left"`
	QRight  float32 `parquet:"q_right"`
}

type stateKey struct {
	x, y   int32
	facing int32
}

type qVector [4]float32 // indexed by maze.Direction

// TabularPolicy is the immutable, in-memory index spec.md §4.4 describes:
// a mapping from semantic target position to a per-state q-vector table,
// aggregated at inference time across every target currently relevant
// (dots, pellets, ghosts).
type TabularPolicy struct {
	Alpha                  float64
	Gamma                  float64
	TotalActions           int64
	ExplorationModeChanged bool

	byTarget map[maze.Position]map[stateKey]qVector
}

// LoadTabularPolicy reads a policy file written in the PolicyRow schema
// (SPEC_FULL.md §4.4a), following the teacher's read-once-at-startup
// GenericReader pattern (viewer/debug_games.go).
func LoadTabularPolicy(path string) (*TabularPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat policy file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != tabularSchemaVersion {
		return nil, fmt.Errorf("unsupported policy schema %q", schema)
	}

	policy := &TabularPolicy{byTarget: map[maze.Position]map[stateKey]qVector{}}
	if v, ok := pf.Lookup("alpha"); ok {
		policy.Alpha, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := pf.Lookup("gamma"); ok {
		policy.Gamma, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := pf.Lookup("total_actions"); ok {
		policy.TotalActions, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := pf.Lookup("exploration_mode_changed"); ok {
		policy.ExplorationModeChanged, _ = strconv.ParseBool(v)
	}

	reader := parquet.NewGenericReader[PolicyRow](pf)
	defer reader.Close()

	buf := make([]PolicyRow, 512)
	for {
		n, err := reader.Read(buf)
		for _, row := range buf[:n] {
			policy.insert(row)
		}
		if err != nil {
			break
		}
	}

	return policy, nil
}

func (p *TabularPolicy) insert(row PolicyRow) {
	target := maze.Position{X: int(row.TargetX), Y: int(row.TargetY)}
	key := stateKey{x: row.GridX, y: row.GridY, facing: row.Facing}
	table, ok := p.byTarget[target]
	if !ok {
		table = map[stateKey]qVector{}
		p.byTarget[target] = table
	}
	table[key] = qVector{row.QUp, row.QDown, row.QLeft, row.QRight}
}

// lookup returns the zero vector for any (target, state) pair unseen at
// training time, per spec.md §4.4's discovery rule.
func (p *TabularPolicy) lookup(target maze.Position, key stateKey) qVector {
	table, ok := p.byTarget[target]
	if !ok {
		return qVector{}
	}
	v, ok := table[key]
	if !ok {
		return qVector{}
	}
	return v
}

// SelectAction aggregates the per-target value tables into a single score
// per action and returns the argmax over walkable directions.
func (p *TabularPolicy) SelectAction(s *Snapshot) maze.Direction {
	key := stateKey{x: int32(s.PacmanPos.X), y: int32(s.PacmanPos.Y), facing: int32(s.PacmanFacing)}

	var aggregate qVector
	for pos := range s.Dots {
		v := p.lookup(pos, key)
		for i := range aggregate {
			aggregate[i] += tabularWeightDot * v[i]
		}
	}
	for pos := range s.Pellets {
		v := p.lookup(pos, key)
		for i := range aggregate {
			aggregate[i] += tabularWeightPellet * v[i]
		}
	}
	for _, g := range s.Ghosts {
		var weight float32 = tabularWeightNonFrightGhost
		if g.Frightened {
			weight = tabularWeightFrightGhost
		}
		v := p.lookup(g.Position, key)
		for i := range aggregate {
			aggregate[i] += weight * v[i]
		}
	}

	shapeGhostAdjacency(s, key, &aggregate)

	valid := walkableDirections(s.Maze, s.PacmanPos)
	if len(valid) == 0 {
		return s.PacmanFacing
	}
	best := valid[0]
	bestScore := aggregate[best]
	for _, dir := range valid[1:] {
		if aggregate[dir] > bestScore {
			bestScore = aggregate[dir]
			best = dir
		}
	}
	return best
}

// shapeGhostAdjacency adds the decaying non-frightened-ghost proximity
// penalty spec.md §4.4 layers on top of the aggregated value. The penalty
// is scored per direction against the cell that direction actually leads
// to, so it steers the argmax away from ghost-adjacent moves instead of
// shifting every direction's score by the same amount.
func shapeGhostAdjacency(s *Snapshot, key stateKey, aggregate *qVector) {
	for _, g := range s.Ghosts {
		if g.Frightened {
			continue
		}
		for _, dir := range maze.AllDirections {
			next := s.Maze.ApplyTeleport(s.PacmanPos.Add(dir))
			d := manhattanWithTeleports(s.Maze, next, g.Position)
			var penalty float64
			switch {
			case d <= 1:
				penalty = tabularAdjacentGhostPenalty
			case d == 2:
				penalty = tabularDist2GhostPenalty
			case d <= 4:
				penalty = tabularWithin4GhostPenalty / float64(d)
			case d <= 8:
				penalty = tabularWithin8GhostPenalty / float64(d)
			default:
				continue
			}
			aggregate[dir] += float32(penalty)
		}
	}
}
