package roads

import (
	"math"

	"github.com/talgya/blobworld/internal/geom"
	"github.com/talgya/blobworld/internal/world"
)

// Cell is an integer lattice coordinate visited by a road.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rasterize walks a digital line from start to end and returns every lattice
// cell it touches, each exactly once, in visiting order.
//
// x advances one cell per step; an error term accumulates |dy/dx| and every
// time it reaches one half, y steps toward the end row. A vertical segment has
// its horizontal delta nudged to a tiny epsilon so it steps straight along y.
func Rasterize(start, end geom.Vec) []Cell {
	sx, sy := start.Cell()
	ex, ey := end.Cell()

	dx := float64(ex - sx)
	if dx == 0 {
		dx = 0.000001
	}
	deltaErr := math.Abs(float64(ey-sy) / dx)

	xStep := 1
	if ex < sx {
		xStep = -1
	}
	yStep := 1
	if ey < sy {
		yStep = -1
	}

	seen := make(map[Cell]bool)
	var cells []Cell
	visit := func(x, y int) {
		c := Cell{X: x, Y: y}
		if !seen[c] {
			seen[c] = true
			cells = append(cells, c)
		}
	}

	y := sy
	errTerm := 0.0
	for x := sx; ; x += xStep {
		visit(x, y)
		errTerm += deltaErr
		for errTerm >= 0.5 && y != ey {
			y += yStep
			visit(x, y)
			errTerm -= 1.0
		}
		if x == ex {
			break
		}
	}
	return cells
}

// Clear reports whether every cell of the line from start to end is open.
func Clear(terrain world.Field, start, end geom.Vec) bool {
	for _, c := range Rasterize(start, end) {
		if terrain.Blocked(c.X, c.Y) {
			return false
		}
	}
	return true
}
