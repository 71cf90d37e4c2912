package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPort is matched by MissingPortError via errors.Is.
	ErrMissingPort = errors.New("missing port")
	// ErrUnsupportedOrientation is matched by UnsupportedOrientationError via errors.Is.
	ErrUnsupportedOrientation = errors.New("unsupported port orientation")
)

// MissingPortError reports that a required port is absent from a port set.
type MissingPortError struct {
	Name string
}

func (e *MissingPortError) Error() string {
	return fmt.Sprintf("%v: %q", ErrMissingPort, e.Name)
}

// Is lets errors.Is(err, ErrMissingPort) succeed.
func (e *MissingPortError) Is(target error) bool { return target == ErrMissingPort }

// UnsupportedOrientationError reports a port whose orientation is not one
// of 0, 90, 180 or 270 degrees.
type UnsupportedOrientationError struct {
	Port        string
	Orientation float64
}

func (e *UnsupportedOrientationError) Error() string {
	return fmt.Sprintf("%v: port %q has orientation %g (want 0, 90, 180 or 270)",
		ErrUnsupportedOrientation, e.Port, e.Orientation)
}

// Is lets errors.Is(err, ErrUnsupportedOrientation) succeed.
func (e *UnsupportedOrientationError) Is(target error) bool {
	return target == ErrUnsupportedOrientation
}
