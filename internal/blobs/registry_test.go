package blobs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/blobworld/internal/geom"
	"github.com/talgya/blobworld/internal/world"
)

func newRegistry(t *testing.T, terrain world.Field, seed int64) *Registry {
	t.Helper()
	return NewRegistry(terrain, DefaultConfig(), rand.New(rand.NewSource(seed)))
}

func open() world.Field {
	return world.FieldFunc(func(x, y int) bool { return false })
}

func assertNoOverlaps(t *testing.T, r *Registry) {
	t.Helper()
	bs := r.Blobs()
	for i := range bs {
		for j := i + 1; j < len(bs); j++ {
			sum := float64(bs[i].Radius + bs[j].Radius)
			assert.GreaterOrEqual(t, geom.DistSqr(bs[i].Pos, bs[j].Pos), sum*sum,
				"blobs %s and %s overlap", bs[i].ID, bs[j].ID)
		}
	}
}

func assertDisksUnblocked(t *testing.T, r *Registry, terrain world.Field) {
	t.Helper()
	for _, b := range r.Blobs() {
		for x := -b.Radius; x <= b.Radius; x++ {
			for y := -b.Radius; y <= b.Radius; y++ {
				if x*x+y*y > b.Radius*b.Radius {
					continue
				}
				px, py := b.Pos.Add(geom.V(float64(x), float64(y))).Cell()
				assert.False(t, terrain.Blocked(px, py), "blob %s covers blocked cell %d,%d", b.ID, px, py)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	blocked := world.FieldFunc(func(x, y int) bool { return x == 3 && y == 0 })
	r := newRegistry(t, blocked, 1)

	assert.True(t, r.Validate(Blob{ID: "a", Pos: geom.V(0, 0), Radius: 2}))
	assert.False(t, r.Validate(Blob{ID: "a", Pos: geom.V(0, 0), Radius: 3}), "disk reaches blocked cell")
	assert.False(t, r.Validate(Blob{ID: "a", Pos: geom.V(3, 0), Radius: 1}), "center blocked")

	r.Load([]Blob{{ID: "b", Pos: geom.V(-10, 0), Radius: 4}})
	near := Blob{ID: "a", Pos: geom.V(-5, 0), Radius: 2}
	assert.False(t, r.Validate(near), "overlaps b")
	assert.True(t, r.Validate(near, "b"), "b ignored")

	self := near
	self.ID = "b"
	assert.True(t, r.Validate(self), "a blob never collides with itself")

	touching := Blob{ID: "a", Pos: geom.V(-4, 0), Radius: 2}
	assert.True(t, r.Validate(touching), "distance equal to radius sum is allowed")
}

func TestFindCloseExcludesSelf(t *testing.T) {
	r := newRegistry(t, open(), 1)
	r.Load([]Blob{
		{ID: "a", Pos: geom.V(0, 0), Radius: 1},
		{ID: "b", Pos: geom.V(3, 0), Radius: 1},
		{ID: "c", Pos: geom.V(5, 0), Radius: 1},
	})
	a, _ := r.Get("a")
	near := r.FindClose(a, 5)
	require.Len(t, near, 1, "distance exactly 5 is not strictly within")
	assert.Equal(t, "b", near[0].ID)
}

func TestTryMergeTwoBlobs(t *testing.T) {
	r := newRegistry(t, open(), 1)
	r.Load([]Blob{
		{ID: "a", Pos: geom.V(0, 0), Radius: 3},
		{ID: "b", Pos: geom.V(5, 0), Radius: 3},
	})

	require.True(t, r.TryMerge("a"))
	require.Equal(t, 1, r.Len())

	merged := r.Blobs()[0]
	assert.Equal(t, 6, merged.Radius)
	assert.Equal(t, geom.V(2.5, 0), merged.Pos)
	_, okA := r.Get("a")
	_, okB := r.Get("b")
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestTryMergeRejectsBlockedResult(t *testing.T) {
	blocked := world.FieldFunc(func(x, y int) bool { return x == 2 && y == 5 })
	r := newRegistry(t, blocked, 1)
	r.Load([]Blob{
		{ID: "a", Pos: geom.V(0, 0), Radius: 3},
		{ID: "b", Pos: geom.V(5, 0), Radius: 3},
	})
	assert.False(t, r.TryMerge("a"))
	assert.Equal(t, 2, r.Len())
}

func TestGrowOpenTerrain(t *testing.T) {
	r := newRegistry(t, open(), 1)
	r.Load([]Blob{{ID: "a", Pos: geom.V(0, 0), Radius: 1}})
	require.True(t, r.Grow("a"))
	b, _ := r.Get("a")
	assert.Equal(t, 2, b.Radius)
	assert.Equal(t, geom.V(0, 0), b.Pos)
	assert.Equal(t, 0, b.State)
}

func TestGrowNeverCommitsBlockedDisk(t *testing.T) {
	blocked := world.FieldFunc(func(x, y int) bool { return x == 3 && y == 0 })
	for seed := int64(0); seed < 50; seed++ {
		r := newRegistry(t, blocked, seed)
		r.Load([]Blob{{ID: "a", Pos: geom.V(0, 0), Radius: 2}})

		grew := r.Grow("a")
		b, _ := r.Get("a")

		assert.False(t, b.Radius == 3 && b.Pos == geom.V(0, 0), "seed %d: committed radius 3 at unmodified center", seed)
		assert.True(t, r.Validate(b), "seed %d: committed invalid blob", seed)
		if grew {
			assert.NotEqual(t, geom.V(0, 0), b.Pos, "seed %d: growth must relocate", seed)
		} else {
			assert.Equal(t, 1, b.State, "seed %d", seed)
			assert.Equal(t, 2, b.Radius, "seed %d", seed)
			assert.Equal(t, geom.V(0, 0), b.Pos, "seed %d", seed)
		}
	}
}

func TestGrowStallsWhenBoxedIn(t *testing.T) {
	// Only the exact radius-1 disk around the origin is open.
	boxed := world.FieldFunc(func(x, y int) bool { return x*x+y*y > 1 })
	r := newRegistry(t, boxed, 3)
	r.Load([]Blob{{ID: "a", Pos: geom.V(0.5, 0.5), Radius: 1}})

	// A radius-2 disk spans five cells and can never fit, so the blob
	// stays at radius 1 and mostly stalls.
	for i := 0; i < 20; i++ {
		r.Grow("a")
	}
	b, _ := r.Get("a")
	assert.Equal(t, 1, b.Radius)
	assert.Positive(t, b.State)
}

func TestSpawnEmptyRegistry(t *testing.T) {
	r := newRegistry(t, open(), 1)
	assert.False(t, r.Spawn())
	assert.Equal(t, 0, r.Len())
}

func TestSpawnNeverOverlaps(t *testing.T) {
	r := newRegistry(t, open(), 9)
	r.Load([]Blob{{ID: "a", Pos: geom.V(0, 0), Radius: 4}})
	for i := 0; i < 200; i++ {
		r.Spawn()
	}
	assertNoOverlaps(t, r)
	for _, b := range r.Blobs() {
		if b.ID != "a" {
			assert.Equal(t, 1, b.Radius)
		}
	}
}

func TestSeedRandom(t *testing.T) {
	g := world.NewGrid(50, 50)
	r := newRegistry(t, g, 4)
	n := r.SeedRandom(5, 50, 50, 500)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, r.Len())
	assertNoOverlaps(t, r)
	assertDisksUnblocked(t, r, g)
}

func TestTickInvariants(t *testing.T) {
	g := world.Generate(world.SmallTestConfig())
	r := newRegistry(t, g, 11)
	r.SeedRandom(6, g.Width, g.Height, 2000)
	require.Positive(t, r.Len())

	for i := 0; i < 40; i++ {
		r.Tick()
		assertNoOverlaps(t, r)
		assertDisksUnblocked(t, r, g)
	}
}

func TestTickRemovesBlobsOnTerrainChange(t *testing.T) {
	g := world.NewGrid(40, 40)
	r := newRegistry(t, g, 2)
	r.Load([]Blob{
		{ID: "a", Pos: geom.V(10, 10), Radius: 2},
		{ID: "b", Pos: geom.V(30, 30), Radius: 2},
	})

	// Flood everything around a.
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			g.Set(x, y, true)
		}
	}

	rep := r.Tick()
	_, okA := r.Get("a")
	assert.False(t, okA)
	assert.Equal(t, 1, rep.Died)
	_, okB := r.Get("b")
	assert.True(t, okB)
}

// zeroSource makes every random draw zero: no perturbation offsets, no
// keep-radius retry and spawns land on their parent.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

// pocket leaves only the radius-4 disk around (2, 0) open.
func pocket() world.Field {
	return world.FieldFunc(func(x, y int) bool { return (x-2)*(x-2)+y*y > 16 })
}

func touchingPair() []Blob {
	return []Blob{
		{ID: "a", Pos: geom.V(0, 0), Radius: 2},
		{ID: "b", Pos: geom.V(4, 0), Radius: 2},
	}
}

func TestTickMergesStalledBlobs(t *testing.T) {
	r := NewRegistry(pocket(), DefaultConfig(), rand.New(zeroSource{}))
	r.Load(touchingPair())

	rep := r.Tick()
	assert.Equal(t, 0, rep.Grown)
	assert.Equal(t, 2, rep.Stalled)
	assert.Equal(t, 1, rep.Merged, "b is consumed by a's merge and skipped")
	assert.Equal(t, 0, rep.Died)
	assert.Equal(t, 0, rep.Spawned)

	require.Equal(t, 1, r.Len())
	merged := r.Blobs()[0]
	assert.Equal(t, 4, merged.Radius)
	assert.Equal(t, geom.V(2, 0), merged.Pos)
	assert.NotContains(t, []string{"a", "b"}, merged.ID)
	assertDisksUnblocked(t, r, pocket())
}

func TestTickSkipsMergeAtLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeLimit = 2
	r := NewRegistry(pocket(), cfg, rand.New(zeroSource{}))
	r.Load(touchingPair())

	rep := r.Tick()
	assert.Equal(t, 2, rep.Stalled)
	assert.Equal(t, 0, rep.Merged)
	require.Equal(t, 2, r.Len())
	for _, b := range r.Blobs() {
		assert.Equal(t, 2, b.Radius)
		assert.Equal(t, 1, b.State)
	}
}

func TestScore(t *testing.T) {
	r := newRegistry(t, open(), 1)
	assert.Equal(t, 0.0, r.Score())

	r.Load([]Blob{
		{ID: "a", Pos: geom.V(0, 0), Radius: 2},
		{ID: "b", Pos: geom.V(100, 0), Radius: 4},
	})
	assert.InDelta(t, 3.0, r.Score(), 1e-3)
}
