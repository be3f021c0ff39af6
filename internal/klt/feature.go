package klt

// Feature is the description of a point at one image resolution: the
// template intensities, the template gradients and their second moments.
type Feature struct {
	// X, Y is the position in the coordinates of the image it was described in.
	X, Y   float64
	Radius int

	Desc   []float64
	DerivX []float64
	DerivY []float64

	Gxx, Gyy, Gxy float64

	// Described is false when the level could not host the template.
	Described bool
}

// NewFeature allocates the template buffers for the given radius.
func NewFeature(radius int) *Feature {
	f := &Feature{}
	f.setRadius(radius)
	return f
}

func (f *Feature) setRadius(radius int) {
	f.Radius = radius
	n := (2*radius + 1) * (2*radius + 1)
	if cap(f.Desc) < n {
		f.Desc = make([]float64, n)
		f.DerivX = make([]float64, n)
		f.DerivY = make([]float64, n)
	}
	f.Desc = f.Desc[:n]
	f.DerivX = f.DerivX[:n]
	f.DerivY = f.DerivY[:n]
}

// PyramidFeature is a tracked point described at every pyramid level.
type PyramidFeature struct {
	// ID is unique among live tracks; older tracks have smaller IDs.
	ID int64
	// X, Y is the position at full resolution.
	X, Y   float64
	Radius int
	// Layers is indexed like pyramid levels, finest first.
	Layers []Feature
}

// NewPyramidFeature allocates a feature with buffers for the given number of levels.
func NewPyramidFeature(levels, radius int) *PyramidFeature {
	pf := &PyramidFeature{}
	pf.setShape(levels, radius)
	return pf
}

func (pf *PyramidFeature) setShape(levels, radius int) {
	pf.Radius = radius
	if cap(pf.Layers) < levels {
		layers := make([]Feature, levels)
		copy(layers, pf.Layers)
		pf.Layers = layers
	}
	pf.Layers = pf.Layers[:levels]
	for i := range pf.Layers {
		pf.Layers[i].setRadius(radius)
	}
}

// Reset clears identity and descriptions but keeps the buffers.
func (pf *PyramidFeature) Reset() {
	pf.ID = 0
	pf.X, pf.Y = 0, 0
	for i := range pf.Layers {
		l := &pf.Layers[i]
		l.X, l.Y = 0, 0
		l.Gxx, l.Gyy, l.Gxy = 0, 0, 0
		l.Described = false
	}
}
