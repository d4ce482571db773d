package maze

import "sync"

// Reference grid dimensions (spec.md §3, §6).
const (
	ReferenceWidth  = 28
	ReferenceHeight = 35
)

// buildReferenceLayout deterministically constructs the 28x35 reference
// maze described in spec.md §6 ("a constant array of cell codes... with a
// fixed 28x35 shape"). Rather than hand-transcribing 980 cells, the layout
// is generated by carving isolated wall pillars out of an otherwise open,
// dot-filled rectangle: every pillar is surrounded on all sides by
// walkable cells, so removing any one of them can never disconnect the
// grid. This keeps the "constant array" auditable as code instead of an
// opaque literal (see DESIGN.md for the corresponding Open Question).
func buildReferenceLayout() ([][]Cell, []TeleportPair, map[string]Position) {
	const w, h = ReferenceWidth, ReferenceHeight

	cells := make([][]Cell, h)
	for y := range cells {
		cells[y] = make([]Cell, w)
		for x := range cells[y] {
			cells[y][x] = Dot
		}
	}

	// Border walls, except for the two tunnel mouths on the mid row.
	tunnelRow := h / 2
	for x := 0; x < w; x++ {
		cells[0][x] = Wall
		cells[h-1][x] = Wall
	}
	for y := 0; y < h; y++ {
		if y == tunnelRow {
			continue
		}
		cells[y][0] = Wall
		cells[y][w-1] = Wall
	}

	// Ghost house: a 4x4 block centered in the grid.
	ghostHouseX0, ghostHouseY0 := w/2-2, h/2-2
	for y := ghostHouseY0; y < ghostHouseY0+4; y++ {
		for x := ghostHouseX0; x < ghostHouseX0+4; x++ {
			cells[y][x] = GhostHouse
		}
	}

	// Isolated 2x2 wall pillars in a regular grid, skipping anything that
	// would touch the border, the tunnel row, or the ghost house.
	for by := 3; by < h-3; by += 4 {
		for bx := 3; bx < w-3; bx += 4 {
			if pillarOverlaps(bx, by, ghostHouseX0, ghostHouseY0) {
				continue
			}
			if by <= tunnelRow+1 && by+1 >= tunnelRow-1 && (bx <= 1 || bx+1 >= w-2) {
				continue
			}
			cells[by][bx] = Wall
			cells[by][bx+1] = Wall
			cells[by+1][bx] = Wall
			cells[by+1][bx+1] = Wall
		}
	}

	// Power pellets at the four open corners.
	pelletPositions := []Position{
		{X: 1, Y: 1},
		{X: w - 2, Y: 1},
		{X: 1, Y: h - 2},
		{X: w - 2, Y: h - 2},
	}
	for _, p := range pelletPositions {
		cells[p.Y][p.X] = PowerPellet
	}

	teleports := []TeleportPair{
		{Entry: Position{X: 0, Y: tunnelRow}, Exit: Position{X: w - 1, Y: tunnelRow}},
		{Entry: Position{X: w - 1, Y: tunnelRow}, Exit: Position{X: 0, Y: tunnelRow}},
	}

	starts := map[string]Position{
		"pacman":     {X: w / 2, Y: ghostHouseY0 + 6},
		"ghostHouse": {X: ghostHouseX0 + 1, Y: ghostHouseY0 + 1},
		"blinky":     {X: ghostHouseX0, Y: ghostHouseY0},
		"pinky":      {X: ghostHouseX0 + 3, Y: ghostHouseY0},
		"inky":       {X: ghostHouseX0, Y: ghostHouseY0 + 3},
		"clyde":      {X: ghostHouseX0 + 3, Y: ghostHouseY0 + 3},
	}

	return cells, teleports, starts
}

func pillarOverlaps(bx, by, ghx, ghy int) bool {
	// Ghost house occupies [ghx, ghx+3] x [ghy, ghy+3]; give it a 1-cell
	// margin so its door remains reachable.
	return bx+1 >= ghx-1 && bx <= ghx+4 && by+1 >= ghy-1 && by <= ghy+4
}

var (
	referenceOnce sync.Once
	reference     *Maze
)

// Reference returns the shared, read-only reference maze. It is built once
// and reused across every room in the process (spec.md §5).
func Reference() *Maze {
	referenceOnce.Do(func() {
		cells, teleports, starts := buildReferenceLayout()
		reference = New(cells, teleports, starts)
	})
	return reference
}
