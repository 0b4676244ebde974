// Package traffic moves short-lived agents ("motives") along the road graph.
// Agents wander from blob to blob, choosing their next road at random.
package traffic

import (
	"math/rand"
	"time"

	"github.com/talgya/blobworld/internal/geom"
)

// Kind distinguishes the two agent types.
type Kind uint8

const (
	KindPedestrian Kind = iota
	KindCar
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindPedestrian:
		return "pedestrian"
	case KindCar:
		return "car"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// arrivalDistSqr is the squared distance at which an agent counts as arrived.
const arrivalDistSqr = 10.0

// Motive is a traffic agent travelling between blobs.
type Motive struct {
	Pos       geom.Vec      `json:"pos"`
	Start     geom.Vec      `json:"start"`
	Target    geom.Vec      `json:"target"`
	TargetID  string        `json:"target_id"`
	Kind      Kind          `json:"kind"`
	Speed     float64       `json:"speed"`
	SpawnedAt time.Duration `json:"spawned_at"`
	TTL       time.Duration `json:"ttl"`
	Arrived   bool          `json:"arrived"`
}

// Expired reports whether the agent has outlived its TTL at time now.
func (m *Motive) Expired(now time.Duration) bool {
	return now-m.SpawnedAt >= m.TTL
}

// step moves the agent one tick toward its target. The heading is the road
// direction blended with a random sideways wobble.
func (m *Motive) step(rng *rand.Rand) {
	dir := m.Target.Sub(m.Start).Normalized()

	jitter := dir.RightPerp()
	if rng.Float64() > 0.5 {
		jitter = dir.LeftPerp()
	}

	heading := dir.Scale(rng.Float64() * 10).Add(jitter.Scale(rng.Float64())).Normalized()
	m.Pos = m.Pos.Add(heading.Scale(m.Speed))

	m.Arrived = geom.DistSqr(m.Pos, m.Target) < arrivalDistSqr
}
