package klt

import (
	"errors"
	"testing"

	"github.com/MeKo-Tech/goklt/internal/gray"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
	"github.com/MeKo-Tech/goklt/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPyramid(t *testing.T, img *gray.Image, levels int) *pyramid.Pyramid {
	t.Helper()
	p, err := pyramid.Builder{Levels: levels, ScaleFactor: 2}.Build(img)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Release()
		img.Release()
	})
	return p
}

func newPyramidTracker(t *testing.T) *PyramidTracker {
	t.Helper()
	pt, err := NewPyramidTracker(DefaultConfig())
	require.NoError(t, err)
	return pt
}

func TestPyramidDescribe(t *testing.T) {
	p := buildPyramid(t, testutil.TexturedImage(100, 80), 3)
	pt := newPyramidTracker(t)

	pf := &PyramidFeature{ID: 7}
	require.NoError(t, pt.Describe(pf, 40, 32, p))
	require.Len(t, pf.Layers, 3)
	assert.Equal(t, 40.0, pf.X)
	assert.Equal(t, 32.0, pf.Y)
	assert.Equal(t, 3, pf.Radius)

	wantX := []float64{40, 20, 10}
	wantY := []float64{32, 16, 8}
	for i, l := range pf.Layers {
		assert.True(t, l.Described, "level %d", i)
		assert.Equal(t, wantX[i], l.X)
		assert.Equal(t, wantY[i], l.Y)
	}
}

func TestPyramidDescribeSkipsCoarseBorderLevels(t *testing.T) {
	p := buildPyramid(t, testutil.TexturedImage(100, 80), 3)
	pt := newPyramidTracker(t)

	pf := &PyramidFeature{}
	require.NoError(t, pt.Describe(pf, 8, 8, p))
	assert.True(t, pf.Layers[0].Described)
	assert.True(t, pf.Layers[1].Described)
	assert.False(t, pf.Layers[2].Described, "(2,2) at level 2 cannot host a radius 3 template")

	fault, err := pt.Track(pf, p)
	require.NoError(t, err)
	assert.Equal(t, FaultSuccess, fault)
	assert.Equal(t, 8.0, pf.X)
}

func TestPyramidDescribeErrors(t *testing.T) {
	p := buildPyramid(t, testutil.TexturedImage(100, 80), 3)
	pt := newPyramidTracker(t)

	err := pt.Describe(&PyramidFeature{}, 1, 40, p)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	err = pt.Describe(&PyramidFeature{}, 50, 40, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestPyramidTrackZeroMotionIsExact(t *testing.T) {
	p := buildPyramid(t, testutil.TexturedImage(100, 80), 3)
	pt := newPyramidTracker(t)

	positions := [][2]float64{{12, 10}, {33.5, 47.25}, {50, 40}, {71.125, 22.75}, {85, 66}}
	for _, pos := range positions {
		pf := &PyramidFeature{}
		require.NoError(t, pt.Describe(pf, pos[0], pos[1], p))
		fault, err := pt.Track(pf, p)
		require.NoError(t, err)
		require.Equal(t, FaultSuccess, fault)
		assert.Equal(t, pos[0], pf.X)
		assert.Equal(t, pos[1], pf.Y)
	}
}

func TestPyramidTrackLargeShift(t *testing.T) {
	ref := buildPyramid(t, testutil.TexturedImage(120, 100), 3)
	cur := buildPyramid(t, testutil.Shifted(120, 100, 5, -4), 3)
	pt := newPyramidTracker(t)

	pf := &PyramidFeature{}
	require.NoError(t, pt.Describe(pf, 60, 50, ref))
	fault, err := pt.Track(pf, cur)
	require.NoError(t, err)
	require.Equal(t, FaultSuccess, fault)
	assert.InDelta(t, 65, pf.X, 0.2)
	assert.InDelta(t, 46, pf.Y, 0.2)
}

func TestPyramidTrackLayerMismatch(t *testing.T) {
	p3 := buildPyramid(t, testutil.TexturedImage(100, 80), 3)
	p2 := buildPyramid(t, testutil.TexturedImage(100, 80), 2)
	pt := newPyramidTracker(t)

	pf := &PyramidFeature{}
	require.NoError(t, pt.Describe(pf, 50, 40, p3))
	_, err := pt.Track(pf, p2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLayerMismatch))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 50.0, pf.X)
}

func TestPyramidTrackReportsFinestFault(t *testing.T) {
	p := buildPyramid(t, testutil.TexturedImage(100, 80), 3)
	pt := newPyramidTracker(t)

	pf := &PyramidFeature{}
	require.NoError(t, pt.Describe(pf, 50, 40, p))
	pf.X = 98 // outside the allowed box at every level
	fault, err := pt.Track(pf, p)
	require.NoError(t, err)
	assert.Equal(t, FaultOutOfBounds, fault)
	assert.Equal(t, 98.0, pf.X)
}

func TestPyramidFeatureReset(t *testing.T) {
	pf := NewPyramidFeature(3, 2)
	require.Len(t, pf.Layers, 3)
	assert.Len(t, pf.Layers[2].Desc, 25)
	pf.ID = 9
	pf.Layers[1].Described = true
	pf.Reset()
	assert.Zero(t, pf.ID)
	assert.False(t, pf.Layers[1].Described)
	assert.Len(t, pf.Layers[2].Desc, 25, "buffers survive reset")
}
