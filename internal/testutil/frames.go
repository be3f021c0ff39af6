package testutil

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/stretchr/testify/require"
)

// Texture is a smooth, non-periodic-looking intensity field in [0, 255]
// with gradients in every direction, suited to corner detection and tracking.
func Texture(x, y float64) float64 {
	v := 128 +
		50*math.Sin(x/6)*math.Cos(y/5) +
		30*math.Sin((x-0.5*y)/9) +
		20*math.Cos((0.7*x+y)/7)
	return math.Max(0, math.Min(255, v))
}

// TexturedImage renders Texture into a width x height image.
func TexturedImage(width, height int) *gray.Image {
	return Shifted(width, height, 0, 0)
}

// Shifted renders Texture moved by (dx, dy): content at (x, y) in
// TexturedImage appears at (x+dx, y+dy).
func Shifted(width, height int, dx, dy float64) *gray.Image {
	return Render(width, height, func(x, y float64) float64 { return Texture(x-dx, y-dy) })
}

// Render samples f at every integer pixel.
func Render(width, height int, f func(x, y float64) float64) *gray.Image {
	img := gray.New(width, height)
	for y := range height {
		row := img.Row(y)
		for x := range row {
			row[x] = float32(f(float64(x), float64(y)))
		}
	}
	return img
}

// Constant returns an image filled with v.
func Constant(width, height int, v float32) *gray.Image {
	img := gray.New(width, height)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// AddUniformNoise adds noise drawn uniformly from [0, amplitude) to every
// pixel, in place. The seed makes runs reproducible.
func AddUniformNoise(img *gray.Image, amplitude float64, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // test noise
	for i := range img.Pix {
		img.Pix[i] += float32(rng.Float64() * amplitude)
	}
}

// SaveFrame writes img as an 8-bit image to path.
func SaveFrame(t *testing.T, img *gray.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, img.Save(path), "Failed to save frame %s", path)
}

// WriteSequence renders n frames of Texture translating by (vx, vy) pixels
// per frame and saves them as PNG files in dir, returning the paths in order.
func WriteSequence(t *testing.T, dir string, width, height, n int, vx, vy float64) []string {
	t.Helper()
	paths := make([]string, 0, n)
	for i := range n {
		img := Shifted(width, height, vx*float64(i), vy*float64(i))
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		SaveFrame(t, img, path)
		img.Release()
		paths = append(paths, path)
	}
	return paths
}
