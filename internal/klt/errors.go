package klt

import "errors"

var (
	// ErrInvalidArgument marks precondition violations such as describing a
	// feature too close to the image border.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLayerMismatch is returned when a feature and a pyramid disagree on the number of levels.
	ErrLayerMismatch = errors.New("feature layers do not match pyramid levels")
)
