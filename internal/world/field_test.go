package world

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyGridIsPermissive(t *testing.T) {
	g := Empty(10, 10)
	assert.False(t, g.HasData())
	assert.False(t, g.Blocked(3, 3))
	assert.False(t, g.Blocked(-5, 200), "no data means nothing is blocked, even out of bounds")
}

func TestGridOutOfBoundsBlocked(t *testing.T) {
	g := NewGrid(4, 4)
	assert.False(t, g.Blocked(0, 0))
	assert.False(t, g.Blocked(3, 3))
	assert.True(t, g.Blocked(-1, 0))
	assert.True(t, g.Blocked(0, -1))
	assert.True(t, g.Blocked(4, 0))
	assert.True(t, g.Blocked(0, 4))
}

func TestGridSet(t *testing.T) {
	g := NewGrid(4, 4)
	g.Set(2, 1, true)
	g.Set(9, 9, true) // ignored
	assert.True(t, g.Blocked(2, 1))
	assert.False(t, g.Blocked(1, 2))
	assert.Equal(t, 1, g.BlockedCount())
}

func TestFieldFunc(t *testing.T) {
	f := FieldFunc(func(x, y int) bool { return x == 3 && y == 0 })
	assert.True(t, f.Blocked(3, 0))
	assert.False(t, f.Blocked(0, 3))
}

// The occupancy convention is pinned: dark pixels are blocked, light are open.
func TestFromImageThresholdDirection(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	img.Set(0, 0, color.Black)
	img.Set(1, 0, color.White)
	img.Set(2, 0, color.RGBA{R: 200, G: 200, B: 199, A: 255}) // 599
	img.Set(3, 0, color.RGBA{R: 200, G: 200, B: 200, A: 255}) // 600

	g := FromImage(img, DefaultThreshold)
	assert.True(t, g.Blocked(0, 0), "black")
	assert.False(t, g.Blocked(1, 0), "white")
	assert.True(t, g.Blocked(2, 0), "just under threshold")
	assert.False(t, g.Blocked(3, 0), "at threshold")
}

func TestFromImageProperty(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(x*16 + y)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	g := FromImage(img, DefaultThreshold)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := x*16 + y
			assert.Equal(t, 3*v < DefaultThreshold, g.Blocked(x, y), "cell %d,%d", x, y)
		}
	}
}

func TestLoadImageMissingFileIsPermissive(t *testing.T) {
	g, err := LoadImage(filepath.Join(t.TempDir(), "nope.png"), 32, 32, DefaultThreshold)
	require.NoError(t, err)
	assert.False(t, g.HasData())
	assert.False(t, g.Blocked(5, 5))
}

func TestLoadImageScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.Black)
	src.Set(1, 0, color.White)
	src.Set(0, 1, color.White)
	src.Set(1, 1, color.White)

	path := filepath.Join(t.TempDir(), "map.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	g, err := LoadImage(path, 8, 8, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 8, g.Width)
	assert.Equal(t, 8, g.Height)
	assert.True(t, g.Blocked(0, 0))
	assert.True(t, g.Blocked(3, 3))
	assert.False(t, g.Blocked(4, 4))
	assert.False(t, g.Blocked(7, 0))
}

func TestLoadImageCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))
	_, err := LoadImage(path, 8, 8, DefaultThreshold)
	assert.Error(t, err)
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)
	require.True(t, a.HasData())
	assert.Equal(t, a.cells, b.cells)
	assert.Less(t, a.BlockedCount(), cfg.Width*cfg.Height)
	// The falloff rings the map with water.
	assert.True(t, a.Blocked(0, 0))
}
