package maze

import "testing"

func TestReferenceDimensions(t *testing.T) {
	m := Reference()
	if m.Width() != ReferenceWidth || m.Height() != ReferenceHeight {
		t.Fatalf("got %dx%d, want %dx%d", m.Width(), m.Height(), ReferenceWidth, ReferenceHeight)
	}
}

func TestReferenceIsFullyConnected(t *testing.T) {
	m := Reference()

	start, ok := m.Start("pacman")
	if !ok {
		t.Fatal("missing pacman start")
	}

	visited := map[Position]bool{start: true}
	queue := []Position{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, n := range m.Neighbors(p) {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}

	walkable := 0
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			if m.IsWalkable(Position{X: x, Y: y}) {
				walkable++
				if !visited[Position{X: x, Y: y}] {
					t.Fatalf("cell (%d,%d) is walkable but unreachable from pacman start", x, y)
				}
			}
		}
	}
	if walkable == 0 {
		t.Fatal("no walkable cells")
	}
}

func TestStartingPositionsAreWalkable(t *testing.T) {
	m := Reference()
	for _, name := range []string{"pacman", "ghostHouse", "blinky", "pinky", "inky", "clyde"} {
		p, ok := m.Start(name)
		if !ok {
			t.Fatalf("missing start %q", name)
		}
		if !m.IsWalkable(p) {
			t.Fatalf("start %q at %v is not walkable", name, p)
		}
	}
}

func TestApplyTeleportRoundTrip(t *testing.T) {
	m := Reference()
	for _, tp := range m.TeleportPairs() {
		if !m.IsWalkable(tp.Entry) {
			t.Fatalf("teleport entry %v not walkable", tp.Entry)
		}
		got := m.ApplyTeleport(tp.Entry)
		if got != tp.Exit {
			t.Fatalf("ApplyTeleport(%v) = %v, want %v", tp.Entry, got, tp.Exit)
		}
		if m.IsWalkable(got) != m.IsWalkable(tp.Entry) {
			t.Fatalf("walkability changed across teleport: %v -> %v", tp.Entry, got)
		}
	}
}

func TestDirectionToward(t *testing.T) {
	cases := []struct {
		a, b Position
		want Direction
	}{
		{Position{0, 0}, Position{1, 0}, Right},
		{Position{0, 0}, Position{-1, 0}, Left},
		{Position{0, 0}, Position{0, 1}, Down},
		{Position{0, 0}, Position{0, -1}, Up},
		{Position{0, 0}, Position{2, 1}, Right}, // larger absolute delta wins
	}
	for _, c := range cases {
		if got := DirectionToward(c.a, c.b); got != c.want {
			t.Errorf("DirectionToward(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestNeighborsExposesTeleportExit(t *testing.T) {
	m := Reference()
	tp := m.TeleportPairs()[0]
	neighbors := m.Neighbors(tp.Entry)
	found := false
	for _, n := range neighbors {
		if n == tp.Exit {
			found = true
		}
	}
	if !found {
		t.Fatalf("Neighbors(%v) = %v, want it to include teleport exit %v", tp.Entry, neighbors, tp.Exit)
	}
}
