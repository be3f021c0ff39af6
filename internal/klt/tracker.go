package klt

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/goklt/internal/gray"
	"gonum.org/v1/gonum/floats"
)

// Input is one image together with its gradient images. All three must
// have the same dimensions.
type Input struct {
	Image  gray.Sampler
	DerivX gray.Sampler
	DerivY gray.Sampler
}

// Validate reports whether the three samplers agree in size.
func (in Input) Validate() error {
	if in.Image == nil || in.DerivX == nil || in.DerivY == nil {
		return fmt.Errorf("%w: image and gradients are required", ErrInvalidArgument)
	}
	w, h := in.Image.Width(), in.Image.Height()
	if in.DerivX.Width() != w || in.DerivX.Height() != h || in.DerivY.Width() != w || in.DerivY.Height() != h {
		return fmt.Errorf("%w: image %dx%d and gradients %dx%d, %dx%d differ in size",
			ErrInvalidArgument, w, h, in.DerivX.Width(), in.DerivX.Height(), in.DerivY.Width(), in.DerivY.Height())
	}
	return nil
}

// Tracker tracks features within a single image. It owns scratch buffers
// and must not be used from more than one goroutine at a time.
type Tracker struct {
	cfg     Config
	scratch []float64
	diff    []float64
}

// NewTracker validates cfg and sizes the scratch buffers for its template.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Side() * cfg.Side()
	return &Tracker{
		cfg:     cfg,
		scratch: make([]float64, n),
		diff:    make([]float64, n),
	}, nil
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config { return t.cfg }

// CanDescribe reports whether a template centred at (x, y) plus a one pixel
// margin for interpolation fits inside a width x height image.
func (t *Tracker) CanDescribe(x, y float64, width, height int) bool {
	r := float64(t.cfg.TemplateRadius)
	return x-r-1 >= 0 && y-r-1 >= 0 &&
		x+r+1 <= float64(width-1) && y+r+1 <= float64(height-1)
}

// InBounds reports whether (x, y) lies in the region a feature may occupy:
// [r+border, size-r-border) on both axes.
func (t *Tracker) InBounds(x, y float64, width, height int) bool {
	lo := float64(t.cfg.TemplateRadius + t.cfg.ForbiddenBorder)
	return x >= lo && y >= lo &&
		x < float64(width)-lo && y < float64(height)-lo
}

// Describe samples the template and its gradients around (x, y) and stores
// them, together with the gradient second moments, in f.
func (t *Tracker) Describe(f *Feature, x, y float64, in Input) error {
	if err := in.Validate(); err != nil {
		return err
	}
	w, h := in.Image.Width(), in.Image.Height()
	if !t.CanDescribe(x, y, w, h) {
		return fmt.Errorf("%w: template of radius %d at (%.2f, %.2f) does not fit %dx%d image",
			ErrInvalidArgument, t.cfg.TemplateRadius, x, y, w, h)
	}

	r := t.cfg.TemplateRadius
	side := t.cfg.Side()
	f.setRadius(r)
	tlx, tly := x-float64(r), y-float64(r)
	in.Image.Region(tlx, tly, side, side, f.Desc)
	in.DerivX.Region(tlx, tly, side, side, f.DerivX)
	in.DerivY.Region(tlx, tly, side, side, f.DerivY)

	f.Gxx = floats.Dot(f.DerivX, f.DerivX)
	f.Gyy = floats.Dot(f.DerivY, f.DerivY)
	f.Gxy = floats.Dot(f.DerivX, f.DerivY)
	f.X, f.Y = x, y
	f.Described = true
	return nil
}

// Track refines the position of f in the input image, starting from f.X, f.Y.
// The position is written back only when the result is FaultSuccess. The
// gradients used are the ones captured by Describe.
func (t *Tracker) Track(f *Feature, in Input) Fault {
	img := in.Image
	if !f.Described || f.Radius != t.cfg.TemplateRadius {
		return FaultFailed
	}

	r := float64(f.Radius)
	side := t.cfg.Side()
	w, h := img.Width(), img.Height()
	outside := func(x, y float64) bool { return !t.InBounds(x, y, w, h) }

	x0, y0 := f.X, f.Y
	if outside(x0, y0) {
		return FaultOutOfBounds
	}

	det := f.Gxx*f.Gyy - f.Gxy*f.Gxy
	if det < t.cfg.MinDeterminant {
		return FaultFailed
	}

	x, y := x0, y0
	for range t.cfg.MaxIterations {
		img.Region(x-r, y-r, side, side, t.scratch)
		floats.SubTo(t.diff, f.Desc, t.scratch)
		ex := floats.Dot(t.diff, f.DerivX)
		ey := floats.Dot(t.diff, f.DerivY)

		dx := (f.Gyy*ex - f.Gxy*ey) / det
		dy := (f.Gxx*ey - f.Gxy*ex) / det
		x += dx
		y += dy

		if outside(x, y) {
			return FaultOutOfBounds
		}
		if math.Abs(x-x0) > float64(side) || math.Abs(y-y0) > float64(side) {
			return FaultDrifted
		}
		if math.Abs(dx) < t.cfg.MinPositionDelta && math.Abs(dy) < t.cfg.MinPositionDelta {
			break
		}
	}

	img.Region(x-r, y-r, side, side, t.scratch)
	meanErr := floats.Distance(f.Desc, t.scratch, 1) / float64(len(f.Desc))
	if meanErr > t.cfg.MaxError {
		return FaultLargeError
	}

	f.X, f.Y = x, y
	return FaultSuccess
}
