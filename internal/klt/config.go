// Package klt implements the Kanade-Lucas-Tomasi point tracker, for a single
// image and for a coarse-to-fine image pyramid.
package klt

import "fmt"

// Config controls convergence and rejection of the tracker.
type Config struct {
	// MaxIterations bounds the Newton steps per level.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	// MinPositionDelta stops iterating once both step components are smaller.
	MinPositionDelta float64 `mapstructure:"min_position_delta" yaml:"min_position_delta" json:"min_position_delta"`
	// MinDeterminant rejects features whose gradient matrix is near singular.
	MinDeterminant float64 `mapstructure:"min_determinant" yaml:"min_determinant" json:"min_determinant"`
	// MaxError is the largest accepted mean absolute intensity difference.
	MaxError float64 `mapstructure:"max_error" yaml:"max_error" json:"max_error"`
	// ForbiddenBorder shrinks the allowed region on every side, in pixels.
	ForbiddenBorder int `mapstructure:"forbidden_border" yaml:"forbidden_border" json:"forbidden_border"`
	// TemplateRadius is the half width of the square template.
	TemplateRadius int `mapstructure:"template_radius" yaml:"template_radius" json:"template_radius"`
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    15,
		MinPositionDelta: 0.01,
		MinDeterminant:   0.001,
		MaxError:         25,
		ForbiddenBorder:  0,
		TemplateRadius:   3,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations %d (must be >= 1)", ErrInvalidArgument, c.MaxIterations)
	}
	if c.MinPositionDelta <= 0 {
		return fmt.Errorf("%w: min_position_delta %g (must be positive)", ErrInvalidArgument, c.MinPositionDelta)
	}
	if c.MinDeterminant < 0 {
		return fmt.Errorf("%w: min_determinant %g (must be >= 0)", ErrInvalidArgument, c.MinDeterminant)
	}
	if c.MaxError <= 0 {
		return fmt.Errorf("%w: max_error %g (must be positive)", ErrInvalidArgument, c.MaxError)
	}
	if c.ForbiddenBorder < 0 {
		return fmt.Errorf("%w: forbidden_border %d (must be >= 0)", ErrInvalidArgument, c.ForbiddenBorder)
	}
	if c.TemplateRadius < 1 {
		return fmt.Errorf("%w: template_radius %d (must be >= 1)", ErrInvalidArgument, c.TemplateRadius)
	}
	return nil
}

// Side returns the template side length, 2*TemplateRadius+1.
func (c Config) Side() int {
	return 2*c.TemplateRadius + 1
}
