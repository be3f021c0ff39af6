package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/MeKo-Tech/goklt/internal/mempool"
)

// ShiTomasi scores pixels by the smaller eigenvalue of the mean gradient
// second moment matrix over a square window. It works on the float
// gradients of the pyramid and needs no OpenCV.
type ShiTomasi struct {
	// Radius is the half width of the scoring window.
	Radius int `mapstructure:"radius" yaml:"radius" json:"radius"`
	// MinScore discards weak responses.
	MinScore float64 `mapstructure:"min_score" yaml:"min_score" json:"min_score"`
	// NMSRadius is the Chebyshev distance within which only the strongest corner survives.
	NMSRadius int `mapstructure:"nms_radius" yaml:"nms_radius" json:"nms_radius"`
	// ExcludeRadius suppresses corners closer than this to an excluded point.
	ExcludeRadius float64 `mapstructure:"exclude_radius" yaml:"exclude_radius" json:"exclude_radius"`
}

// DefaultShiTomasi returns detector defaults suited to a radius 3 tracker.
func DefaultShiTomasi() ShiTomasi {
	return ShiTomasi{Radius: 2, MinScore: 1, NMSRadius: 3, ExcludeRadius: 3}
}

// Validate checks the detector settings.
func (d ShiTomasi) Validate() error {
	if d.Radius < 1 {
		return fmt.Errorf("invalid detector radius: %d (must be >= 1)", d.Radius)
	}
	if d.MinScore < 0 {
		return fmt.Errorf("invalid detector min score: %g (must be >= 0)", d.MinScore)
	}
	if d.NMSRadius < 0 {
		return fmt.Errorf("invalid detector nms radius: %d (must be >= 0)", d.NMSRadius)
	}
	if d.ExcludeRadius < 0 {
		return fmt.Errorf("invalid detector exclude radius: %g (must be >= 0)", d.ExcludeRadius)
	}
	return nil
}

// Score computes the corner response of every pixel. Pixels whose window
// does not fit in the image score zero. The result is a pooled image.
func (d ShiTomasi) Score(dx, dy *gray.Image) *gray.Image {
	w, h := dx.Width, dx.Height
	out := gray.New(w, h)
	r := d.Radius
	if w <= 2*r || h <= 2*r {
		return out
	}

	bufs := mempool.GetFloat32Multiple([]int{w * h, w * h, w * h})
	defer mempool.PutFloat32Multiple(bufs)
	xx, yy, xy := bufs[0], bufs[1], bufs[2]
	for i := range dx.Pix {
		gx, gy := dx.Pix[i], dy.Pix[i]
		xx[i] = gx * gx
		yy[i] = gy * gy
		xy[i] = gx * gy
	}
	boxSum(xx, w, h, r)
	boxSum(yy, w, h, r)
	boxSum(xy, w, h, r)

	area := float64((2*r + 1) * (2*r + 1))
	for y := r; y < h-r; y++ {
		for x := r; x < w-r; x++ {
			i := y*w + x
			a := float64(xx[i]) / area
			c := float64(yy[i]) / area
			b := float64(xy[i]) / area
			half := (a - c) / 2
			out.Pix[i] = float32((a+c)/2 - math.Sqrt(half*half+b*b))
		}
	}
	return out
}

// boxSum replaces v with the sum over the (2r+1)^2 window around every
// pixel whose window fits. Other pixels are left undefined.
func boxSum(v []float32, w, h, r int) {
	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	for y := range h {
		row := v[y*w : y*w+w]
		var acc float64
		for x := 0; x < 2*r+1; x++ {
			acc += float64(row[x])
		}
		out := tmp[y*w : y*w+w]
		out[r] = float32(acc)
		for x := r + 1; x < w-r; x++ {
			acc += float64(row[x+r]) - float64(row[x-r-1])
			out[x] = float32(acc)
		}
	}
	for x := r; x < w-r; x++ {
		var acc float64
		for y := 0; y < 2*r+1; y++ {
			acc += float64(tmp[y*w+x])
		}
		v[r*w+x] = float32(acc)
		for y := r + 1; y < h-r; y++ {
			acc += float64(tmp[(y+r)*w+x]) - float64(tmp[(y-r-1)*w+x])
			v[y*w+x] = float32(acc)
		}
	}
}

// Detect returns up to limit corners of the gradients in in, strongest
// first. Ties are ordered by y then x. Corners within ExcludeRadius of an
// excluded point are skipped.
func (d ShiTomasi) Detect(in Input, exclude []Point, limit int) []Corner {
	dx, dy := in.DerivX, in.DerivY
	if limit <= 0 || dx.Empty() || !dx.SameSize(dy) {
		return nil
	}
	w, h := dx.Width, dx.Height
	score := d.Score(dx, dy)
	defer score.Release()

	mask := mempool.GetBool(w * h)
	defer mempool.PutBool(mask)
	d.markExcluded(mask, w, h, exclude)

	r := d.Radius
	var candidates []Corner
	for y := r; y < h-r; y++ {
		for x := r; x < w-r; x++ {
			i := y*w + x
			s := float64(score.Pix[i])
			if s < d.MinScore || s <= 0 || mask[i] {
				continue
			}
			if !localMax(score, x, y) {
				continue
			}
			candidates = append(candidates, Corner{X: x, Y: y, Score: s})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	return suppress(candidates, d.NMSRadius, limit)
}

func (d ShiTomasi) markExcluded(mask []bool, w, h int, exclude []Point) {
	er := d.ExcludeRadius
	if er <= 0 {
		return
	}
	for _, p := range exclude {
		x0 := max(0, int(math.Floor(p.X-er)))
		x1 := min(w-1, int(math.Ceil(p.X+er)))
		y0 := max(0, int(math.Floor(p.Y-er)))
		y1 := min(h-1, int(math.Ceil(p.Y+er)))
		for y := y0; y <= y1; y++ {
			if math.Abs(float64(y)-p.Y) >= er {
				continue
			}
			for x := x0; x <= x1; x++ {
				if math.Abs(float64(x)-p.X) < er {
					mask[y*w+x] = true
				}
			}
		}
	}
}

// localMax reports whether (x, y) is not beaten by any 8-neighbour.
// Equal neighbours earlier in scan order win.
func localMax(score *gray.Image, x, y int) bool {
	s := score.At(x, y)
	for j := -1; j <= 1; j++ {
		for i := -1; i <= 1; i++ {
			if i == 0 && j == 0 {
				continue
			}
			nx, ny := x+i, y+j
			if !score.InBounds(nx, ny) {
				continue
			}
			n := score.At(nx, ny)
			if n > s || (n == s && (j < 0 || (j == 0 && i < 0))) {
				return false
			}
		}
	}
	return true
}

// suppress keeps corners, already sorted strongest first, that have no
// stronger kept corner within radius. It stops after limit corners.
func suppress(sorted []Corner, radius, limit int) []Corner {
	kept := make([]Corner, 0, min(limit, len(sorted)))
	for _, c := range sorted {
		if len(kept) == limit {
			break
		}
		ok := true
		for _, k := range kept {
			if abs(k.X-c.X) <= radius && abs(k.Y-c.Y) <= radius {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return kept
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
