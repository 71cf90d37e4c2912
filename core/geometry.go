package core

import (
	"math"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

// Unit and physical constants. Layout coordinates are micrometres; the
// SI boundary of a solver multiplies by Micrometer.
const (
	Micrometer = 1e-6

	// SpeedOfLight is c in m/s.
	SpeedOfLight = 299792458.0
	// SpeedOfLightUm is c in µm/s, the unit the cloud solver works in.
	SpeedOfLightUm = SpeedOfLight / Micrometer
)

// WavelengthToFrequency converts a vacuum wavelength in micrometres to a
// frequency in Hz.
func WavelengthToFrequency(wavelengthUm float64) float64 {
	if wavelengthUm == 0 {
		return math.Inf(1)
	}
	return SpeedOfLightUm / wavelengthUm
}

// normalAxis returns the lateral axis a port's propagation runs along.
// Ports facing 0/180 degrees propagate along x, ports facing 90/270 along y.
func normalAxis(p model.Port) (model.Axis, error) {
	switch p.Orientation {
	case 0, 180:
		return model.AxisX, nil
	case 90, 270:
		return model.AxisY, nil
	default:
		return "", &UnsupportedOrientationError{Port: p.Name, Orientation: p.Orientation}
	}
}

// outward returns the unit vector pointing out of the device through p.
func outward(p model.Port) (dx, dy float64, err error) {
	switch p.Orientation {
	case 0:
		return 1, 0, nil
	case 90:
		return 0, 1, nil
	case 180:
		return -1, 0, nil
	case 270:
		return 0, -1, nil
	default:
		return 0, 0, &UnsupportedOrientationError{Port: p.Name, Orientation: p.Orientation}
	}
}

// outwardDirection is the propagation sign of light leaving through p.
func outwardDirection(p model.Port) model.Direction {
	if p.Orientation == 0 || p.Orientation == 90 {
		return model.DirectionForward
	}
	return model.DirectionBackward
}

// inwardDirection is the propagation sign of light injected through p.
func inwardDirection(p model.Port) model.Direction {
	if outwardDirection(p) == model.DirectionForward {
		return model.DirectionBackward
	}
	return model.DirectionForward
}

// Inset returns the point d micrometres inside the device from p's centre,
// measured against the port's outward direction.
func Inset(p model.Port, d float64) (model.Point2, error) {
	dx, dy, err := outward(p)
	if err != nil {
		return model.Point2{}, err
	}
	return model.Point2{X: p.Center.X - dx*d, Y: p.Center.Y - dy*d}, nil
}
