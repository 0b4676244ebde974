// Package geom provides the 2D vector math shared by blobs, roads and traffic.
package geom

import (
	"math"
	"math/rand"
)

// Vec is a point or direction in continuous world space.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is shorthand for Vec{X: x, Y: y}.
func V(x, y float64) Vec {
	return Vec{X: x, Y: y}
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec {
	return Vec{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v * s.
func (v Vec) Scale(s float64) Vec {
	return Vec{X: v.X * s, Y: v.Y * s}
}

// LengthSqr returns the squared length of v.
func (v Vec) LengthSqr() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Normalized returns v scaled to unit length. The zero vector stays zero.
func (v Vec) Normalized() Vec {
	l := math.Sqrt(v.LengthSqr())
	if l == 0 {
		return Vec{}
	}
	return Vec{X: v.X / l, Y: v.Y / l}
}

// LeftPerp returns v rotated 90° counter-clockwise.
func (v Vec) LeftPerp() Vec {
	return Vec{X: -v.Y, Y: v.X}
}

// RightPerp returns v rotated 90° clockwise.
func (v Vec) RightPerp() Vec {
	return Vec{X: v.Y, Y: -v.X}
}

// Cell returns the integer lattice cell containing v.
func (v Vec) Cell() (x, y int) {
	return int(math.Floor(v.X)), int(math.Floor(v.Y))
}

// DistSqr returns the squared distance between a and b.
func DistSqr(a, b Vec) float64 {
	return b.Sub(a).LengthSqr()
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Vec) Vec {
	return a.Add(b).Scale(0.5)
}

// RandomUnit returns a uniformly distributed direction of length 1.
func RandomUnit(rng *rand.Rand) Vec {
	angle := rng.Float64() * 2 * math.Pi
	return Vec{X: math.Cos(angle), Y: math.Sin(angle)}
}
