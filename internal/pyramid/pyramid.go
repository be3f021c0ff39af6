// Package pyramid builds multi-resolution image pyramids together with the
// gradient images the tracker needs at every level.
package pyramid

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/goklt/internal/gray"
)

// MinLevelSize is the smallest width or height a level may have.
const MinLevelSize = 2

var (
	// ErrInvalidBuilder is returned for builder settings that cannot produce a pyramid.
	ErrInvalidBuilder = errors.New("invalid pyramid builder")
	// ErrTooSmall is returned when a requested level would be smaller than MinLevelSize.
	ErrTooSmall = errors.New("image too small for pyramid")
)

// Level is one resolution of a pyramid.
type Level struct {
	Image  *gray.Image
	DerivX *gray.Image
	DerivY *gray.Image
	// Scale maps level coordinates to full resolution: full = level * Scale.
	Scale float64

	image, derivX, derivY *gray.Bilinear
}

// Samplers returns bilinear samplers over the level's intensity and gradient images.
func (l *Level) Samplers() (img, dx, dy gray.Sampler) {
	return l.image, l.derivX, l.derivY
}

// Width of the level image.
func (l *Level) Width() int { return l.Image.Width }

// Height of the level image.
func (l *Level) Height() int { return l.Image.Height }

// Pyramid stores levels finest-first: level 0 has the input resolution.
type Pyramid struct {
	levels []Level
	// ownsBase is set for clones, whose level 0 image is a private copy.
	ownsBase bool
}

// NumLevels returns the number of levels.
func (p *Pyramid) NumLevels() int { return len(p.levels) }

// Level returns level i. Level 0 is the finest.
func (p *Pyramid) Level(i int) *Level { return &p.levels[i] }

// Width of level 0.
func (p *Pyramid) Width() int { return p.levels[0].Image.Width }

// Height of level 0.
func (p *Pyramid) Height() int { return p.levels[0].Image.Height }

// Release returns every buffer the pyramid allocated to the pool. The input
// image handed to Build is left alone.
func (p *Pyramid) Release() {
	if p == nil {
		return
	}
	for i := range p.levels {
		l := &p.levels[i]
		if i > 0 || p.ownsBase {
			l.Image.Release()
		}
		l.DerivX.Release()
		l.DerivY.Release()
	}
	p.levels = nil
}

// Clone returns a deep copy of p. Every buffer of the copy, level 0
// included, is released by its Release.
func (p *Pyramid) Clone() *Pyramid {
	out := &Pyramid{levels: make([]Level, len(p.levels)), ownsBase: true}
	for i := range p.levels {
		l := &p.levels[i]
		out.levels[i] = newLevel(l.Image.Clone(), l.DerivX.Clone(), l.DerivY.Clone(), l.Scale)
	}
	return out
}

func newLevel(img, dx, dy *gray.Image, scale float64) Level {
	return Level{
		Image:  img,
		DerivX: dx,
		DerivY: dy,
		Scale:  scale,
		image:  gray.NewBilinear(img),
		derivX: gray.NewBilinear(dx),
		derivY: gray.NewBilinear(dy),
	}
}

// Builder describes the shape of the pyramids it builds.
type Builder struct {
	Levels      int `mapstructure:"levels" yaml:"levels" json:"levels"`
	ScaleFactor int `mapstructure:"scale_factor" yaml:"scale_factor" json:"scale_factor"`
}

// DefaultBuilder returns a three level pyramid halving resolution per level.
func DefaultBuilder() Builder {
	return Builder{Levels: 3, ScaleFactor: 2}
}

// Validate checks the builder settings.
func (b Builder) Validate() error {
	if b.Levels < 1 {
		return fmt.Errorf("%w: levels must be >= 1, got %d", ErrInvalidBuilder, b.Levels)
	}
	if b.ScaleFactor < 2 {
		return fmt.Errorf("%w: scale factor must be >= 2, got %d", ErrInvalidBuilder, b.ScaleFactor)
	}
	return nil
}

// Scale returns the scale of level i.
func (b Builder) Scale(i int) float64 {
	return math.Pow(float64(b.ScaleFactor), float64(i))
}

// Build creates a pyramid whose level 0 is img. The input is referenced, not copied.
func (b Builder) Build(img *gray.Image) (*Pyramid, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, fmt.Errorf("build pyramid: %w", gray.ErrEmptyImage)
	}

	// Check every level size before allocating anything.
	w, h := img.Width, img.Height
	for i := 1; i < b.Levels; i++ {
		w /= b.ScaleFactor
		h /= b.ScaleFactor
		if w < MinLevelSize || h < MinLevelSize {
			return nil, fmt.Errorf("%w: level %d of %dx%d input would be %dx%d",
				ErrTooSmall, i, img.Width, img.Height, w, h)
		}
	}
	if img.Width < MinLevelSize || img.Height < MinLevelSize {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooSmall, img.Width, img.Height)
	}

	p := &Pyramid{levels: make([]Level, b.Levels)}
	current := img
	for i := range b.Levels {
		if i > 0 {
			current = Downsample(current, b.ScaleFactor)
		}
		dx, dy := Gradient(current)
		p.levels[i] = newLevel(current, dx, dy, b.Scale(i))
	}
	return p, nil
}
