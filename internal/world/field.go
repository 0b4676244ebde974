// Package world provides the terrain occupancy field the simulation grows on.
// A cell is either open or blocked; blobs and roads may only cover open cells.
package world

import "fmt"

// Field reports whether an integer lattice cell is impassable.
type Field interface {
	Blocked(x, y int) bool
}

// FieldFunc adapts an ordinary function to the Field interface.
type FieldFunc func(x, y int) bool

// Blocked calls f(x, y).
func (f FieldFunc) Blocked(x, y int) bool {
	return f(x, y)
}

// Grid is a rectangular occupancy map.
//
// A Grid without cell data is permissive: nothing is blocked, not even
// coordinates outside its bounds. Once data is present every out-of-bounds
// coordinate is blocked.
type Grid struct {
	Width  int
	Height int
	cells  []bool // row-major, true = blocked
}

// NewGrid creates a fully open grid of the given size.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		cells:  make([]bool, width*height),
	}
}

// Empty returns a grid with no terrain data. Its predicate never blocks.
func Empty(width, height int) *Grid {
	return &Grid{Width: width, Height: height}
}

// HasData reports whether the grid carries terrain data.
func (g *Grid) HasData() bool {
	return g != nil && g.cells != nil
}

// InBounds returns true if the cell lies inside the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// Blocked implements Field.
func (g *Grid) Blocked(x, y int) bool {
	if !g.HasData() {
		return false
	}
	if !g.InBounds(x, y) {
		return true
	}
	return g.cells[y*g.Width+x]
}

// Set marks a cell blocked or open. Out-of-bounds cells are ignored.
func (g *Grid) Set(x, y int, blocked bool) {
	if g.cells == nil {
		g.cells = make([]bool, g.Width*g.Height)
	}
	if !g.InBounds(x, y) {
		return
	}
	g.cells[y*g.Width+x] = blocked
}

// BlockedCount returns the number of blocked cells inside the bounds.
func (g *Grid) BlockedCount() int {
	n := 0
	for _, b := range g.cells {
		if b {
			n++
		}
	}
	return n
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	if !g.HasData() {
		return fmt.Sprintf("Grid(%dx%d, no data)", g.Width, g.Height)
	}
	return fmt.Sprintf("Grid(%dx%d, blocked=%d)", g.Width, g.Height, g.BlockedCount())
}
