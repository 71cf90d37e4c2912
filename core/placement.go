package core

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

const (
	// ExcitationMargin is added to a port's width to size its source or
	// monitor plane.
	ExcitationMargin = 4.0
	// PortSpanZ is the out-of-plane span of port planes.
	PortSpanZ = 2.0
	// PortCenterZ is the out-of-plane centre of port planes.
	PortCenterZ = 0.0
)

// Ports such as "o2_1" sit at the same location as "o2" on another layer
// and must not get a second monitor, hence the anchored match.
var numberedPort = regexp.MustCompile(`^o(\d+)$`)

// IsNumberedPort reports whether name is exactly "o" followed by digits.
func IsNumberedPort(name string) bool {
	return numberedPort.MatchString(name)
}

// PortNumber returns the integer suffix of a numbered port.
func PortNumber(name string) (int, bool) {
	m := numberedPort.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// PlacePorts returns one source placement for the primary port followed by
// one monitor placement per other numbered port, ordered by port number.
// Ports that are not numbered are ignored. On error no placements are
// returned.
func PlacePorts(ports model.PortSet, primary string) ([]model.Placement, error) {
	p0, ok := ports[primary]
	if !ok {
		return nil, &MissingPortError{Name: primary}
	}

	src, err := sourcePlacement(p0)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(ports))
	for name := range ports {
		if name != primary && IsNumberedPort(name) {
			names = append(names, name)
		}
	}
	sortPortNames(names)

	out := make([]model.Placement, 0, len(names)+1)
	out = append(out, src)
	for _, name := range names {
		mon, err := monitorPlacement(ports[name])
		if err != nil {
			return nil, err
		}
		out = append(out, mon)
	}
	return out, nil
}

func sourcePlacement(p model.Port) (model.Placement, error) {
	axis, err := normalAxis(p)
	if err != nil {
		return model.Placement{}, err
	}
	return model.Placement{
		Role:      model.RoleSource,
		PortName:  p.Name,
		Center:    model.Vec3{X: p.Center.X, Y: p.Center.Y, Z: PortCenterZ},
		Size:      transverseSize(axis, p.Width, PortSpanZ),
		Axis:      axis,
		Direction: inwardDirection(p),
	}, nil
}

func monitorPlacement(p model.Port) (model.Placement, error) {
	axis, err := normalAxis(p)
	if err != nil {
		return model.Placement{}, err
	}
	return model.Placement{
		Role:      model.RoleMonitor,
		PortName:  p.Name,
		Center:    model.Vec3{X: p.Center.X, Y: p.Center.Y, Z: PortCenterZ},
		Size:      transverseSize(axis, p.Width, 0),
		Axis:      axis,
		Direction: outwardDirection(p),
	}, nil
}

// transverseSize sizes a plane normal to axis.
func transverseSize(axis model.Axis, width, spanZ float64) model.Vec3 {
	if axis == model.AxisX {
		return model.Vec3{X: 0, Y: width + ExcitationMargin, Z: spanZ}
	}
	return model.Vec3{X: width + ExcitationMargin, Y: 0, Z: spanZ}
}

// sortPortNames orders numbered ports naturally (o2 < o10).
func sortPortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		ni, _ := PortNumber(names[i])
		nj, _ := PortNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

// SortedPortNames returns every port name, numbered ports first in natural
// order, then the rest alphabetically.
func SortedPortNames(ports model.PortSet) []string {
	var numbered, other []string
	for name := range ports {
		if IsNumberedPort(name) {
			numbered = append(numbered, name)
		} else {
			other = append(other, name)
		}
	}
	sortPortNames(numbered)
	sort.Strings(other)
	return append(numbered, other...)
}
