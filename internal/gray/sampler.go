package gray

import "math"

// Sampler reads an image at real-valued coordinates.
type Sampler interface {
	Width() int
	Height() int
	// Get returns the interpolated value at (x, y).
	Get(x, y float64) float64
	// Region fills dst (len >= w*h, row-major) with samples whose top-left
	// is at (x, y) and whose spacing is one pixel.
	Region(x, y float64, w, h int, dst []float64)
}

// Bilinear samples an Image with bilinear interpolation. Coordinates outside
// the image are clamped to the nearest edge pixel.
type Bilinear struct {
	img *Image
}

// NewBilinear returns a bilinear sampler over img.
func NewBilinear(img *Image) *Bilinear {
	return &Bilinear{img: img}
}

// Image returns the sampled image.
func (b *Bilinear) Image() *Image { return b.img }

// Width implements Sampler.
func (b *Bilinear) Width() int { return b.img.Width }

// Height implements Sampler.
func (b *Bilinear) Height() int { return b.img.Height }

// Get implements Sampler.
func (b *Bilinear) Get(x, y float64) float64 {
	x0, x1, ax := b.split(x, b.img.Width)
	y0, y1, ay := b.split(y, b.img.Height)
	w := b.img.Width
	pix := b.img.Pix

	top := float64(pix[y0*w+x0])*(1-ax) + float64(pix[y0*w+x1])*ax
	bot := float64(pix[y1*w+x0])*(1-ax) + float64(pix[y1*w+x1])*ax
	return top*(1-ay) + bot*ay
}

// Region implements Sampler. The fractional offsets are shared by every
// sample in the region so they are computed once.
func (b *Bilinear) Region(x, y float64, w, h int, dst []float64) {
	fx := math.Floor(x)
	fy := math.Floor(y)
	ax := x - fx
	ay := y - fy
	ix := int(fx)
	iy := int(fy)
	width := b.img.Width
	height := b.img.Height
	pix := b.img.Pix

	if ix >= 0 && iy >= 0 && ix+w < width && iy+h < height {
		for j := range h {
			r0 := (iy + j) * width
			r1 := r0 + width
			out := dst[j*w : j*w+w]
			for i := range w {
				c := ix + i
				top := float64(pix[r0+c])*(1-ax) + float64(pix[r0+c+1])*ax
				bot := float64(pix[r1+c])*(1-ax) + float64(pix[r1+c+1])*ax
				out[i] = top*(1-ay) + bot*ay
			}
		}
		return
	}

	for j := range h {
		y0 := clampInt(iy+j, height)
		y1 := clampInt(iy+j+1, height)
		for i := range w {
			x0 := clampInt(ix+i, width)
			x1 := clampInt(ix+i+1, width)
			top := float64(pix[y0*width+x0])*(1-ax) + float64(pix[y0*width+x1])*ax
			bot := float64(pix[y1*width+x0])*(1-ax) + float64(pix[y1*width+x1])*ax
			dst[j*w+i] = top*(1-ay) + bot*ay
		}
	}
}

func (b *Bilinear) split(v float64, n int) (int, int, float64) {
	f := math.Floor(v)
	a := v - f
	i := int(f)
	return clampInt(i, n), clampInt(i+1, n), a
}

func clampInt(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
