package world

import (
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io/fs"
	"os"

	"golang.org/x/image/draw"
)

// DefaultThreshold is the summed 8-bit r+g+b value below which a map pixel
// counts as blocked. Dark pixels are walls; light pixels are open land.
const DefaultThreshold = 600

// FromImage converts an image into a grid of the same size. A pixel is
// blocked when r+g+b (8-bit channels) is strictly below threshold.
func FromImage(img image.Image, threshold int) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			sum := int(r>>8) + int(gr>>8) + int(bl>>8)
			g.Set(x, y, sum < threshold)
		}
	}
	return g
}

// LoadImage reads a map image from disk, scales it to width×height and
// derives a grid from it.
//
// A missing file is not an error: it yields a permissive grid with no data,
// so the simulation keeps running until a map appears.
func LoadImage(path string, width, height, threshold int) (*Grid, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(width, height), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode map %s: %w", path, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return FromImage(dst, threshold), nil
}
