package detect

import "fmt"

// GoodFeatures detects corners with OpenCV's goodFeaturesToTrack on the
// intensity image. It is only functional in binaries built with -tags=gocv.
type GoodFeatures struct {
	// QualityLevel is the fraction of the best corner response a corner must reach.
	QualityLevel float64 `mapstructure:"quality_level" yaml:"quality_level" json:"quality_level"`
	// MinDistance is the smallest Euclidean distance between returned corners.
	MinDistance float64 `mapstructure:"min_distance" yaml:"min_distance" json:"min_distance"`
	// ExcludeRadius drops corners closer than this to an excluded point.
	ExcludeRadius float64 `mapstructure:"exclude_radius" yaml:"exclude_radius" json:"exclude_radius"`
}

// DefaultGoodFeatures returns detector defaults suited to a radius 3 tracker.
func DefaultGoodFeatures() GoodFeatures {
	return GoodFeatures{QualityLevel: 0.01, MinDistance: 3, ExcludeRadius: 3}
}

// Validate checks the detector settings.
func (d GoodFeatures) Validate() error {
	if d.QualityLevel <= 0 || d.QualityLevel > 1 {
		return fmt.Errorf("invalid detector quality level: %g (must be in (0, 1])", d.QualityLevel)
	}
	if d.MinDistance < 0 {
		return fmt.Errorf("invalid detector min distance: %g (must be >= 0)", d.MinDistance)
	}
	if d.ExcludeRadius < 0 {
		return fmt.Errorf("invalid detector exclude radius: %g (must be >= 0)", d.ExcludeRadius)
	}
	return nil
}

// request is the number of corners to ask OpenCV for. Excluded points may
// each hide one corner, so they are added on top of limit.
func (d GoodFeatures) request(limit int, exclude []Point) int {
	if d.ExcludeRadius <= 0 {
		return limit
	}
	return limit + len(exclude)
}

// keep filters raw OpenCV corners, strongest first, against the excluded
// points and stops after limit corners.
func (d GoodFeatures) keep(raw []Corner, exclude []Point, limit int) []Corner {
	out := make([]Corner, 0, min(limit, len(raw)))
	for _, c := range raw {
		if len(out) == limit {
			break
		}
		if excluded(c.X, c.Y, exclude, d.ExcludeRadius) {
			continue
		}
		out = append(out, c)
	}
	return out
}
