// Package detect finds trackable corners for new features.
package detect

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/goklt/internal/gray"
)

// Backend names accepted by Config.
const (
	BackendAuto         = "auto"
	BackendShiTomasi    = "shi_tomasi"
	BackendGoodFeatures = "good_features"
)

// ErrNoBackend is returned when the good_features backend is requested from
// a binary built without OpenCV.
var ErrNoBackend = errors.New("detect: good_features backend not linked; build with -tags=gocv")

// Point is a position that new corners must keep away from.
type Point struct {
	X, Y float64
}

// Corner is a detected corner at integer pixel coordinates.
type Corner struct {
	X, Y  int
	Score float64
}

// Input is the finest pyramid level: intensities and their gradients.
// Backends read the parts they need.
type Input struct {
	Image  *gray.Image
	DerivX *gray.Image
	DerivY *gray.Image
}

// Detector proposes up to limit corners, strongest first, avoiding the
// excluded points.
type Detector interface {
	Detect(in Input, exclude []Point, limit int) []Corner
}

// Config selects and configures the corner detector.
type Config struct {
	// Backend is auto, shi_tomasi or good_features. Auto picks
	// good_features when OpenCV is linked.
	Backend      string       `mapstructure:"backend" yaml:"backend" json:"backend"`
	ShiTomasi    ShiTomasi    `mapstructure:"shi_tomasi" yaml:"shi_tomasi" json:"shi_tomasi"`
	GoodFeatures GoodFeatures `mapstructure:"good_features" yaml:"good_features" json:"good_features"`
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAuto,
		ShiTomasi:    DefaultShiTomasi(),
		GoodFeatures: DefaultGoodFeatures(),
	}
}

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendAuto, BackendShiTomasi, BackendGoodFeatures}
}

// GoodFeaturesLinked reports whether the binary was built with OpenCV.
func GoodFeaturesLinked() bool { return goodFeaturesLinked }

// Resolved returns the backend New will construct.
func (c Config) Resolved() string {
	if c.Backend == "" || c.Backend == BackendAuto {
		if goodFeaturesLinked {
			return BackendGoodFeatures
		}
		return BackendShiTomasi
	}
	return c.Backend
}

// Validate checks the backend name and the settings of the resolved backend.
func (c Config) Validate() error {
	switch c.Resolved() {
	case BackendShiTomasi:
		return c.ShiTomasi.Validate()
	case BackendGoodFeatures:
		if !goodFeaturesLinked {
			return ErrNoBackend
		}
		return c.GoodFeatures.Validate()
	default:
		return fmt.Errorf("invalid detector backend: %s (must be one of: %s)",
			c.Backend, strings.Join(Backends(), ", "))
	}
}

// New validates c and returns the configured detector.
func (c Config) New() (Detector, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Resolved() == BackendGoodFeatures {
		return c.GoodFeatures, nil
	}
	return c.ShiTomasi, nil
}

// excluded reports whether (x, y) lies within the open square of half side
// r around any of the points.
func excluded(x, y int, points []Point, r float64) bool {
	if r <= 0 {
		return false
	}
	for _, p := range points {
		if math.Abs(float64(x)-p.X) < r && math.Abs(float64(y)-p.Y) < r {
			return true
		}
	}
	return false
}
