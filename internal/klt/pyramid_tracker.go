package klt

import (
	"fmt"

	"github.com/MeKo-Tech/goklt/internal/pyramid"
)

// PyramidTracker tracks features coarse-to-fine through an image pyramid.
// Like Tracker it owns scratch state and is not safe for concurrent use.
type PyramidTracker struct {
	tracker *Tracker

	bound  *pyramid.Pyramid
	inputs []Input
}

// NewPyramidTracker creates a pyramid tracker with its own scratch buffers.
func NewPyramidTracker(cfg Config) (*PyramidTracker, error) {
	t, err := NewTracker(cfg)
	if err != nil {
		return nil, err
	}
	return &PyramidTracker{tracker: t}, nil
}

// Tracker returns the single level tracker used for every level.
func (pt *PyramidTracker) Tracker() *Tracker { return pt.tracker }

// bind caches the per level inputs of p.
func (pt *PyramidTracker) bind(p *pyramid.Pyramid) {
	if pt.bound == p && len(pt.inputs) == p.NumLevels() {
		return
	}
	pt.inputs = pt.inputs[:0]
	for i := range p.NumLevels() {
		img, dx, dy := p.Level(i).Samplers()
		pt.inputs = append(pt.inputs, Input{Image: img, DerivX: dx, DerivY: dy})
	}
	pt.bound = p
}

// CanDescribe reports whether a feature at full resolution (x, y) can be
// described at the finest level of p.
func (pt *PyramidTracker) CanDescribe(x, y float64, p *pyramid.Pyramid) bool {
	return pt.tracker.CanDescribe(x, y, p.Width(), p.Height())
}

// Describe fills every level of pf for the full resolution position (x, y).
// Coarse levels that cannot hold the template are marked undescribed; the
// finest level must succeed.
func (pt *PyramidTracker) Describe(pf *PyramidFeature, x, y float64, p *pyramid.Pyramid) error {
	if p == nil || p.NumLevels() == 0 {
		return fmt.Errorf("%w: empty pyramid", ErrInvalidArgument)
	}
	pt.bind(p)
	pf.setShape(p.NumLevels(), pt.tracker.cfg.TemplateRadius)

	if err := pt.tracker.Describe(&pf.Layers[0], x, y, pt.inputs[0]); err != nil {
		return fmt.Errorf("describe level 0: %w", err)
	}
	for i := 1; i < p.NumLevels(); i++ {
		layer := &pf.Layers[i]
		scale := p.Level(i).Scale
		lx, ly := x/scale, y/scale
		if !pt.tracker.CanDescribe(lx, ly, p.Level(i).Width(), p.Level(i).Height()) {
			layer.Described = false
			continue
		}
		if err := pt.tracker.Describe(layer, lx, ly, pt.inputs[i]); err != nil {
			return fmt.Errorf("describe level %d: %w", i, err)
		}
	}
	pf.X, pf.Y = x, y
	return nil
}

// Track follows pf into p. Levels are visited coarsest first. A level
// without a description is skipped. A fault on a coarse level leaves the
// estimate where it entered that level and descent continues; the fault
// of the finest level is returned. pf.X, pf.Y change only on success.
func (pt *PyramidTracker) Track(pf *PyramidFeature, p *pyramid.Pyramid) (Fault, error) {
	if p == nil || len(pf.Layers) != p.NumLevels() {
		n := 0
		if p != nil {
			n = p.NumLevels()
		}
		return FaultFailed, fmt.Errorf("%w (%w): feature %d has %d layers, pyramid has %d levels",
			ErrLayerMismatch, ErrInvalidArgument, pf.ID, len(pf.Layers), n)
	}
	pt.bind(p)

	x, y := pf.X, pf.Y
	fault := FaultFailed
	for i := p.NumLevels() - 1; i >= 0; i-- {
		layer := &pf.Layers[i]
		if !layer.Described {
			continue
		}
		scale := p.Level(i).Scale
		layer.X, layer.Y = x/scale, y/scale
		fault = pt.tracker.Track(layer, pt.inputs[i])
		if fault == FaultSuccess {
			x, y = layer.X*scale, layer.Y*scale
		}
	}
	if fault != FaultSuccess {
		return fault, nil
	}
	pf.X, pf.Y = x, y
	return FaultSuccess, nil
}
