package core

import (
	"math"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

const (
	// PrimaryPort is the port that receives the excitation source.
	PrimaryPort = "o1"
	// RegionMargin is added on every lateral side of the port bounds.
	RegionMargin = 1.0
)

// PortBounds reduces a port set to its lateral extents: x from port
// centres, y from centre ± width. The result does not depend on map
// iteration order. An empty set yields an empty extent.
func PortBounds(ports model.PortSet) model.Extent {
	b := model.Extent{
		XMin: math.Inf(1),
		XMax: math.Inf(-1),
		YMin: math.Inf(1),
		YMax: math.Inf(-1),
	}
	for _, p := range ports {
		b.XMin = min(b.XMin, p.Center.X)
		b.XMax = max(b.XMax, p.Center.X)
		b.YMin = min(b.YMin, p.Center.Y-p.Width)
		b.YMax = max(b.YMax, p.Center.Y+p.Width)
	}
	return b
}

// BuildRegion derives the simulation region from the ports.
//
// When every port shares one x coordinate (a U-turn or reflector) the port
// bounds have zero width, so x runs from the primary port to the device's
// right edge and y covers the whole device extent instead.
func BuildRegion(ports model.PortSet, primary string, device model.Extent, zMin, zMax float64) (model.Region, error) {
	p0, ok := ports[primary]
	if !ok {
		return model.Region{}, &MissingPortError{Name: primary}
	}

	b := PortBounds(ports)
	if b.XMin == b.XMax && !device.Empty() {
		b.XMin = p0.Center.X
		b.XMax = device.XMax
		b.YMin = device.YMin
		b.YMax = device.YMax
	}

	return model.Region{
		XMin: b.XMin - RegionMargin,
		XMax: b.XMax + RegionMargin,
		YMin: b.YMin - RegionMargin,
		YMax: b.YMax + RegionMargin,
		ZMin: zMin,
		ZMax: zMax,
	}, nil
}
