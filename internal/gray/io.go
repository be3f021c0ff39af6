package gray

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// SupportedImageExtensions lists the frame file extensions Load accepts.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// ImageError represents a failure while loading or converting a frame.
type ImageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("image error in %s (%s): %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("image error in %s: %v", e.Operation, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// LoadOptions controls preprocessing applied by Load.
type LoadOptions struct {
	// Blur is the sigma of a gaussian blur applied before conversion. 0 disables it.
	Blur float64
}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Load decodes an image file and converts it to a grayscale float image.
func Load(path string) (*Image, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with optional preprocessing.
func LoadWithOptions(path string, opts LoadOptions) (*Image, error) {
	if path == "" {
		return nil, &ImageError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &ImageError{Operation: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: frame paths are user input by design of the CLI
	if err != nil {
		return nil, &ImageError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	out, err := Decode(f, opts)
	if err != nil {
		var ie *ImageError
		if errors.As(err, &ie) {
			ie.Path = path
		}
		return nil, err
	}
	return out, nil
}

// Decode reads an encoded image from r and converts it like LoadWithOptions.
func Decode(r io.Reader, opts LoadOptions) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &ImageError{Operation: "decode", Err: err}
	}

	if opts.Blur > 0 {
		img = imaging.Blur(img, opts.Blur)
	}
	out, err := FromImage(img)
	if err != nil {
		return nil, &ImageError{Operation: "convert", Err: err}
	}
	return out, nil
}

// FromImage converts any image.Image to a grayscale float image using
// imaging's luminance conversion.
func FromImage(img image.Image) (*Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	g := imaging.Grayscale(img)
	out := New(b.Dx(), b.Dy())
	for y := range out.Height {
		src := g.Pix[y*g.Stride : y*g.Stride+out.Width*4]
		row := out.Row(y)
		for x := range row {
			row[x] = float32(src[x*4])
		}
	}
	return out, nil
}

// ToGray converts the image to an 8-bit image.Gray, clamping to [0, 255].
func (m *Image) ToGray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := range m.Height {
		row := m.Row(y)
		for x, v := range row {
			switch {
			case v <= 0:
				out.Pix[y*out.Stride+x] = 0
			case v >= 255:
				out.Pix[y*out.Stride+x] = 255
			default:
				out.Pix[y*out.Stride+x] = uint8(v + 0.5)
			}
		}
	}
	return out
}

// Save writes the image to path. The format follows the file extension.
func (m *Image) Save(path string) error {
	if err := imaging.Save(m.ToGray(), path); err != nil {
		return &ImageError{Operation: "save", Path: path, Err: err}
	}
	return nil
}
