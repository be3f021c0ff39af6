package pyramid

import (
	"errors"
	"testing"

	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(w, h int, f func(x, y int) float32) *gray.Image {
	img := gray.New(w, h)
	for y := range h {
		for x := range w {
			img.Set(x, y, f(x, y))
		}
	}
	return img
}

func TestBuilderValidate(t *testing.T) {
	tests := []struct {
		name    string
		builder Builder
		wantErr bool
	}{
		{name: "default", builder: DefaultBuilder()},
		{name: "single level", builder: Builder{Levels: 1, ScaleFactor: 2}},
		{name: "zero levels", builder: Builder{Levels: 0, ScaleFactor: 2}, wantErr: true},
		{name: "scale one", builder: Builder{Levels: 2, ScaleFactor: 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidBuilder))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBuildShapes(t *testing.T) {
	img := filled(100, 80, func(x, y int) float32 { return float32(x + y) })
	defer img.Release()

	p, err := Builder{Levels: 3, ScaleFactor: 2}.Build(img)
	require.NoError(t, err)
	defer p.Release()

	require.Equal(t, 3, p.NumLevels())
	assert.Equal(t, 100, p.Width())
	assert.Equal(t, 80, p.Height())
	assert.Same(t, img, p.Level(0).Image)

	wantW := []int{100, 50, 25}
	wantH := []int{80, 40, 20}
	wantS := []float64{1, 2, 4}
	for i := range 3 {
		l := p.Level(i)
		assert.Equal(t, wantW[i], l.Width(), "level %d width", i)
		assert.Equal(t, wantH[i], l.Height(), "level %d height", i)
		assert.InDelta(t, wantS[i], l.Scale, 0)
		assert.True(t, l.Image.SameSize(l.DerivX))
		assert.True(t, l.Image.SameSize(l.DerivY))
		s, dx, dy := l.Samplers()
		assert.Equal(t, l.Width(), s.Width())
		assert.Equal(t, l.Width(), dx.Width())
		assert.Equal(t, l.Height(), dy.Height())
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := DefaultBuilder().Build(&gray.Image{})
	assert.True(t, errors.Is(err, gray.ErrEmptyImage))

	small := gray.New(7, 7)
	defer small.Release()
	_, err = Builder{Levels: 3, ScaleFactor: 2}.Build(small)
	assert.True(t, errors.Is(err, ErrTooSmall))

	_, err = Builder{Levels: 2, ScaleFactor: 2}.Build(small)
	assert.NoError(t, err)

	_, err = Builder{Levels: 0}.Build(small)
	assert.True(t, errors.Is(err, ErrInvalidBuilder))
}

func TestReleaseKeepsInput(t *testing.T) {
	img := filled(32, 32, func(x, y int) float32 { return 1 })
	p, err := DefaultBuilder().Build(img)
	require.NoError(t, err)
	p.Release()
	assert.NotNil(t, img.Pix)
	assert.Equal(t, 0, p.NumLevels())
	img.Release()
}

func TestGradientOfRamp(t *testing.T) {
	img := filled(10, 8, func(x, y int) float32 { return float32(3*x - 2*y) })
	defer img.Release()
	dx, dy := Gradient(img)
	defer dx.Release()
	defer dy.Release()

	for y := 1; y < 7; y++ {
		for x := 1; x < 9; x++ {
			assert.InDelta(t, 3, dx.At(x, y), 1e-5)
			assert.InDelta(t, -2, dy.At(x, y), 1e-5)
		}
	}
	// Extended borders halve the central difference.
	assert.InDelta(t, 1.5, dx.At(0, 4), 1e-5)
	assert.InDelta(t, -1, dy.At(4, 0), 1e-5)
}

func TestDownsampleConstantAndRamp(t *testing.T) {
	c := filled(9, 9, func(x, y int) float32 { return 42 })
	defer c.Release()
	out := Downsample(c, 2)
	defer out.Release()
	assert.Equal(t, 4, out.Width)
	for _, v := range out.Pix {
		assert.InDelta(t, 42, v, 1e-5)
	}

	r := filled(12, 12, func(x, y int) float32 { return float32(x) })
	defer r.Release()
	rd := Downsample(r, 2)
	defer rd.Release()
	// Interior samples of a linear ramp are unchanged by a symmetric blur.
	for x := 1; x < rd.Width; x++ {
		assert.InDelta(t, float32(2*x), rd.At(x, 3), 1e-5)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	img := filled(32, 24, func(x, y int) float32 { return float32(x*3 + y) })
	defer img.Release()
	p, err := DefaultBuilder().Build(img)
	require.NoError(t, err)

	c := p.Clone()
	require.Equal(t, p.NumLevels(), c.NumLevels())
	for i := range p.NumLevels() {
		pl, cl := p.Level(i), c.Level(i)
		assert.Equal(t, pl.Scale, cl.Scale)
		assert.Equal(t, pl.Image.Pix, cl.Image.Pix)
		assert.Equal(t, pl.DerivX.Pix, cl.DerivX.Pix)
		assert.Equal(t, pl.DerivY.Pix, cl.DerivY.Pix)
		assert.NotSame(t, pl.Image, cl.Image)

		_, pdx, _ := pl.Samplers()
		_, cdx, _ := cl.Samplers()
		x, y := float64(cl.Width())/2, float64(cl.Height())/2
		assert.InDelta(t, pdx.Get(x, y), cdx.Get(x, y), 0, "level %d samplers read the copy", i)
	}

	// The source can go away, input image included, without touching the copy.
	p.Release()
	img.Set(5, 5, -1)
	assert.InDelta(t, 3*5+5, c.Level(0).Image.At(5, 5), 0)

	c.Release()
	assert.Zero(t, c.NumLevels())
}
