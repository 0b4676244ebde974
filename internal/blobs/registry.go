package blobs

import (
	"log/slog"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/talgya/blobworld/internal/geom"
	"github.com/talgya/blobworld/internal/world"
)

// scoreEpsilon keeps Score defined for an empty registry.
const scoreEpsilon = 0.0001

// Config controls blob growth and merging.
type Config struct {
	MergeRadiusFactor float64 // Merge search radius = radius × factor
	MergeLimit        int     // Only blobs smaller than this try to merge
	GrowAttempts      int     // Perturbation attempts per growth phase
}

// DefaultConfig returns the standard growth parameters.
func DefaultConfig() Config {
	return Config{
		MergeRadiusFactor: 2.5,
		MergeLimit:        10,
		GrowAttempts:      5,
	}
}

// TickReport summarizes what one Tick changed.
type TickReport struct {
	Grown   int
	Stalled int
	Merged  int
	Died    int
	Spawned int
}

// Registry owns every blob. Blobs are kept in insertion order and indexed by
// id; callers only ever receive copies.
type Registry struct {
	terrain world.Field
	cfg     Config
	rng     *rand.Rand

	order []string
	index map[string]*Blob
}

// NewRegistry creates an empty registry on the given terrain.
func NewRegistry(terrain world.Field, cfg Config, rng *rand.Rand) *Registry {
	if cfg.GrowAttempts <= 0 {
		cfg.GrowAttempts = DefaultConfig().GrowAttempts
	}
	return &Registry{
		terrain: terrain,
		cfg:     cfg,
		rng:     rng,
		index:   make(map[string]*Blob),
	}
}

// SetTerrain swaps the field blobs are validated against. Blobs that no
// longer fit are culled by the next Tick.
func (r *Registry) SetTerrain(terrain world.Field) {
	r.terrain = terrain
}

// Len returns the number of blobs.
func (r *Registry) Len() int {
	return len(r.order)
}

// Get returns a copy of the blob with the given id.
func (r *Registry) Get(id string) (Blob, bool) {
	b, ok := r.index[id]
	if !ok {
		return Blob{}, false
	}
	return *b, true
}

// IDs returns a snapshot of blob ids in registry order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Blobs returns copies of all blobs in registry order.
func (r *Registry) Blobs() []Blob {
	out := make([]Blob, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.index[id])
	}
	return out
}

// Radii returns every blob radius in registry order.
func (r *Registry) Radii() []float64 {
	out := make([]float64, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, float64(r.index[id].Radius))
	}
	return out
}

// Load replaces the registry contents with previously persisted blobs.
// Records are not validated here; the next Tick's liveness sweep culls any
// that no longer fit the terrain.
func (r *Registry) Load(blobs []Blob) {
	r.order = r.order[:0]
	clear(r.index)
	for _, b := range blobs {
		r.insert(b)
	}
}

func (r *Registry) insert(b Blob) {
	if _, exists := r.index[b.ID]; exists {
		*r.index[b.ID] = b
		return
	}
	nb := b
	r.index[b.ID] = &nb
	r.order = append(r.order, b.ID)
}

func (r *Registry) remove(id string) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}
	delete(r.index, id)
	r.order = slices.DeleteFunc(r.order, func(o string) bool { return o == id })
	return true
}

// Validate reports whether b may exist: its center and every lattice point of
// its disk must be unblocked, and it must not overlap any other blob. Blobs
// whose ids are listed in ignore are left out of the overlap test.
func (r *Registry) Validate(b Blob, ignore ...string) bool {
	cx, cy := b.Pos.Cell()
	if r.terrain.Blocked(cx, cy) {
		return false
	}

	rad := b.Radius
	rr := rad * rad
	for x := -rad; x <= rad; x++ {
		for y := -rad; y <= rad; y++ {
			if x*x+y*y > rr {
				continue
			}
			px, py := b.Pos.Add(geom.V(float64(x), float64(y))).Cell()
			if r.terrain.Blocked(px, py) {
				return false
			}
		}
	}

	for _, id := range r.order {
		if id == b.ID || slices.Contains(ignore, id) {
			continue
		}
		if Overlaps(b, *r.index[id]) {
			return false
		}
	}
	return true
}

// FindClose returns every other blob whose center lies strictly within
// radius of b's center.
func (r *Registry) FindClose(b Blob, radius float64) []Blob {
	var out []Blob
	rs := radius * radius
	for _, id := range r.order {
		if id == b.ID {
			continue
		}
		other := r.index[id]
		if geom.DistSqr(b.Pos, other.Pos) < rs {
			out = append(out, *other)
		}
	}
	return out
}

// Grow tries to enlarge a blob by one. When the larger disk does not fit it
// is nudged around a few times; failing that, half the time the blob keeps
// its radius and is nudged instead. The first valid candidate replaces the
// blob. Otherwise its stagnation counter goes up and Grow returns false.
func (r *Registry) Grow(id string) bool {
	orig, ok := r.index[id]
	if !ok {
		return false
	}

	cand := *orig
	cand.Radius++
	valid := r.Validate(cand) || r.perturb(&cand)

	if !valid && r.rng.Float64() > 0.5 {
		cand.Radius = orig.Radius
		valid = r.perturb(&cand)
	}

	if !valid {
		orig.State++
		return false
	}
	*orig = cand
	return true
}

// perturb shifts c by successively larger random offsets until it validates.
// The first offset is always zero, so c is checked where it stands: redundant
// after a failed grow, but the only check of the shifted position when the
// old radius is retried.
func (r *Registry) perturb(c *Blob) bool {
	for i := 0; i < r.cfg.GrowAttempts; i++ {
		offset := geom.RandomUnit(r.rng).Scale(r.rng.Float64() * float64(i))
		c.Pos = c.Pos.Add(offset)
		if r.Validate(*c) {
			return true
		}
	}
	return false
}

// TryMerge looks for a nearby blob to fuse with. The merged blob sits at the
// midpoint with the summed radius; the first neighbour that yields a valid
// merge wins and both originals are replaced.
func (r *Registry) TryMerge(id string) bool {
	b, ok := r.index[id]
	if !ok {
		return false
	}

	for _, other := range r.FindClose(*b, float64(b.Radius)*r.cfg.MergeRadiusFactor) {
		merged := New(geom.Midpoint(b.Pos, other.Pos), b.Radius+other.Radius)
		if !r.Validate(merged, b.ID, other.ID) {
			continue
		}
		slog.Debug("blobs merged", "a", b.ID, "b", other.ID, "pos", merged.Pos, "radius", merged.Radius)
		r.remove(b.ID)
		r.remove(other.ID)
		r.insert(merged)
		return true
	}
	return false
}

// Spawn places a radius-1 blob somewhere near a random existing blob. It is a
// no-op when the spot is invalid or the registry is empty.
func (r *Registry) Spawn() bool {
	if len(r.order) == 0 {
		return false
	}
	parent := r.index[r.order[r.rng.Intn(len(r.order))]]
	offset := geom.RandomUnit(r.rng).Scale(float64(parent.Radius) * 2 * r.rng.Float64())
	return r.Seed(parent.Pos.Add(offset))
}

// Seed places a radius-1 blob at pos if it validates.
func (r *Registry) Seed(pos geom.Vec) bool {
	b := New(pos, 1)
	if !r.Validate(b) {
		return false
	}
	slog.Debug("blob spawned", "id", b.ID, "pos", b.Pos)
	r.insert(b)
	return true
}

// SeedRandom scatters up to n radius-1 blobs over a width×height area,
// giving up after maxAttempts placements. It returns how many were placed.
func (r *Registry) SeedRandom(n, width, height, maxAttempts int) int {
	placed := 0
	for i := 0; i < maxAttempts && placed < n; i++ {
		pos := geom.V(float64(r.rng.Intn(width)), float64(r.rng.Intn(height)))
		if r.Seed(pos) {
			placed++
		}
	}
	return placed
}

// Tick advances the registry once: grow every blob, let stalled small blobs
// try to merge, cull blobs that no longer validate, then spawn one blob.
func (r *Registry) Tick() TickReport {
	var rep TickReport

	var mergeQueue []string
	for _, id := range r.IDs() {
		if r.Grow(id) {
			rep.Grown++
			continue
		}
		rep.Stalled++
		if r.index[id].Radius < r.cfg.MergeLimit {
			mergeQueue = append(mergeQueue, id)
		}
	}

	for _, id := range mergeQueue {
		if _, ok := r.index[id]; !ok {
			continue // consumed by an earlier merge
		}
		if r.TryMerge(id) {
			rep.Merged++
		}
	}

	var dead []string
	for _, id := range r.order {
		if !r.Validate(*r.index[id]) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		slog.Debug("removing dead blob", "id", id, "pos", r.index[id].Pos)
		r.remove(id)
	}
	rep.Died = len(dead)

	if r.Spawn() {
		rep.Spawned++
	}
	return rep
}

// Score returns the mean blob radius.
func (r *Registry) Score() float64 {
	return floats.Sum(r.Radii()) / (float64(len(r.order)) + scoreEpsilon)
}
