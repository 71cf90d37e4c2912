package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

// Extension is a straight waveguide stub added in front of a port so the
// guide runs through the absorbing boundaries.
type Extension struct {
	Port model.Port
	Min  model.Point2
	Max  model.Point2
}

// Extended is the result of ExtendPorts. Ports holds the relocated port
// positions at the far end of each stub; callers that place sources and
// monitors keep using the original ports.
type Extended struct {
	Extensions []Extension
	Ports      model.PortSet
	Extent     model.Extent
}

// ExtendPorts builds an extension of the given length for every port and
// grows the device extent to cover them.
func ExtendPorts(ports model.PortSet, device model.Extent, length float64) (Extended, error) {
	if length < 0 {
		return Extended{}, fmt.Errorf("extension length %g must not be negative", length)
	}

	out := Extended{
		Ports:  make(model.PortSet, len(ports)),
		Extent: device,
	}
	for _, name := range SortedPortNames(ports) {
		p := ports[name]
		dx, dy, err := outward(p)
		if err != nil {
			return Extended{}, err
		}

		far := model.Point2{X: p.Center.X + dx*length, Y: p.Center.Y + dy*length}
		half := 0.5 * p.Width
		// The stub is the port's width wide across the propagation axis.
		ext := Extension{
			Port: p,
			Min: model.Point2{
				X: min(p.Center.X, far.X) - half*math.Abs(dy),
				Y: min(p.Center.Y, far.Y) - half*math.Abs(dx),
			},
			Max: model.Point2{
				X: max(p.Center.X, far.X) + half*math.Abs(dy),
				Y: max(p.Center.Y, far.Y) + half*math.Abs(dx),
			},
		}
		out.Extensions = append(out.Extensions, ext)

		moved := p
		moved.Center = far
		out.Ports[name] = moved

		out.Extent = out.Extent.Union(model.Extent{
			XMin: ext.Min.X, XMax: ext.Max.X,
			YMin: ext.Min.Y, YMax: ext.Max.Y,
		})
	}
	return out, nil
}
