// Package gray holds single-channel floating point images and the
// sub-pixel sampling used by the tracker.
package gray

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/goklt/internal/mempool"
)

// ErrEmptyImage is returned when an operation needs a non-empty image.
var ErrEmptyImage = errors.New("empty image")

// Image is a row-major grayscale image with float32 intensities. Values
// loaded from 8-bit sources lie in [0, 255]; gradient images are signed.
type Image struct {
	Width  int
	Height int
	Pix    []float32

	pooled bool
}

// New allocates a zeroed image backed by a pooled buffer.
// Call Release when the image is no longer referenced.
func New(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    mempool.GetFloat32(width * height),
		pooled: true,
	}
}

// FromPix wraps an existing pixel slice. The slice is not copied.
func FromPix(width, height int, pix []float32) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d: %w", width, height, ErrEmptyImage)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("pixel buffer length %d does not match %dx%d", len(pix), width, height)
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// Release hands a pooled buffer back to mempool. Calling it twice, or on an
// image built with FromPix, is a no-op.
func (m *Image) Release() {
	if m == nil || !m.pooled {
		return
	}
	mempool.PutFloat32(m.Pix)
	m.Pix = nil
	m.pooled = false
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Pix) < m.Width*m.Height
}

// InBounds reports whether the integer pixel (x, y) lies inside the image.
func (m *Image) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// At returns the value at integer pixel (x, y). The caller checks bounds.
func (m *Image) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Set writes the value at integer pixel (x, y). The caller checks bounds.
func (m *Image) Set(x, y int, v float32) {
	m.Pix[y*m.Width+x] = v
}

// Row returns the pixels of row y.
func (m *Image) Row(y int) []float32 {
	off := y * m.Width
	return m.Pix[off : off+m.Width]
}

// Clone returns a deep copy backed by a pooled buffer.
func (m *Image) Clone() *Image {
	out := New(m.Width, m.Height)
	copy(out.Pix, m.Pix)
	return out
}

// SameSize reports whether both images have identical dimensions.
func (m *Image) SameSize(o *Image) bool {
	return m != nil && o != nil && m.Width == o.Width && m.Height == o.Height
}
