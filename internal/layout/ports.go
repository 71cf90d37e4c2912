package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

// sidecar mirrors the port metadata written next to a layout.
type sidecar struct {
	Name  string               `yaml:"name"`
	Ports map[string]portEntry `yaml:"ports"`
}

type portEntry struct {
	Name        string    `yaml:"name"`
	Center      []float64 `yaml:"center"`
	Width       float64   `yaml:"width"`
	Orientation float64   `yaml:"orientation"`
	Layer       []int     `yaml:"layer"`
	PortType    string    `yaml:"port_type"`
}

// LoadPorts reads a port sidecar:
//
//	name: mmi1x2
//	ports:
//	  o1: {center: [-10, 0], width: 0.5, orientation: 180, layer: [1, 0]}
//	  o2: {center: [15, 0.6], width: 0.5, orientation: 0, layer: [1, 0]}
//
// Ports whose port_type is set to anything but "optical" are skipped.
func LoadPorts(path string) (string, model.PortSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read port sidecar: %w", err)
	}
	var sc sidecar
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return "", nil, fmt.Errorf("decode port sidecar %q: %w", path, err)
	}

	ports := make(model.PortSet, len(sc.Ports))
	for key, e := range sc.Ports {
		if e.PortType != "" && e.PortType != "optical" {
			continue
		}
		if len(e.Center) != 2 {
			return "", nil, fmt.Errorf("port %q: want center [x, y], got %v", key, e.Center)
		}
		if e.Width <= 0 {
			return "", nil, fmt.Errorf("port %q: width must be positive, got %g", key, e.Width)
		}
		p := model.Port{
			Name:        key,
			Center:      model.Point2{X: e.Center[0], Y: e.Center[1]},
			Width:       e.Width,
			Orientation: e.Orientation,
		}
		switch len(e.Layer) {
		case 0:
		case 2:
			p.Layer = model.LayerKey{Layer: e.Layer[0], Datatype: e.Layer[1]}
		default:
			return "", nil, fmt.Errorf("port %q: want layer [layer, datatype], got %v", key, e.Layer)
		}
		ports[key] = p
	}
	return sc.Name, ports, nil
}
