// Package blobs grows, merges and culls circular settlement regions on a
// terrain field.
package blobs

import (
	"github.com/google/uuid"

	"github.com/talgya/blobworld/internal/geom"
)

// Blob is a circular settlement region.
type Blob struct {
	ID     string   `json:"id"`
	Pos    geom.Vec `json:"pos"`
	Radius int      `json:"radius"`
	State  int      `json:"state"` // Stagnation counter: failed growth attempts
}

// New creates a blob with a fresh id.
func New(pos geom.Vec, radius int) Blob {
	return Blob{
		ID:     uuid.NewString(),
		Pos:    pos,
		Radius: radius,
	}
}

// Overlaps reports whether two blobs' disks intersect.
func Overlaps(a, b Blob) bool {
	sum := float64(a.Radius + b.Radius)
	return geom.DistSqr(a.Pos, b.Pos) < sum*sum
}
