package brain

import "github.com/pacarena/server/internal/maze"

// frightenedHandoffMS is the remaining-time threshold at which control
// passes to HunterBrain (spec.md §4.5).
const frightenedHandoffMS = 1000

// PacmanController wraps the three brains and picks among them per tick,
// per spec.md §4.5's priority order. Each room owns its own controller
// instance (for its opt-in flag and search depth) but shares the same
// underlying tabular policy pointer.
type PacmanController struct {
	Defensive *DefensiveBrain
	Hunter    *HunterBrain

	tabular       *TabularPolicy // shared, nil until a model file has loaded
	tabularWanted bool           // per-room opt-in; the room decides, not the controller
}

// NewPacmanController wires the two heuristic brains against a shared
// tabular policy pointer that may still be nil: rooms started before the
// model file finishes loading fall back to the heuristic brains and never
// need to be recreated once it loads (spec.md §5).
func NewPacmanController(depth int, tabular *TabularPolicy, useTabular bool) *PacmanController {
	return &PacmanController{
		Defensive:     NewDefensiveBrain(depth),
		Hunter:        NewHunterBrain(),
		tabular:       tabular,
		tabularWanted: useTabular,
	}
}

// UseTabular reports whether a policy is loaded and this room selected it.
func (c *PacmanController) UseTabular() bool {
	return c.tabularWanted && c.tabular != nil
}

// Decide implements spec.md §4.5's priority: tabular policy, then hunter
// while frightened has enough time left, then the defensive search.
func (c *PacmanController) Decide(s *Snapshot) maze.Direction {
	switch {
	case c.UseTabular():
		return c.tabular.SelectAction(s)
	case s.FrightenedRemainingMS > frightenedHandoffMS:
		return c.Hunter.Decide(s)
	default:
		return c.Defensive.FindBestDirection(s)
	}
}
