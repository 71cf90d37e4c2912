package layout

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalsfoundry/fdtd-bridge/core"
	"github.com/signalsfoundry/fdtd-bridge/model"
)

// Device is a loaded layout: the top cell's polygons and its ports.
type Device struct {
	Name     string
	Cell     string // GDS top cell
	Path     string
	Ports    model.PortSet
	Polygons []Polygon
}

// SidecarPath returns the port metadata file that belongs to a layout.
func SidecarPath(gdsPath string) string {
	return strings.TrimSuffix(gdsPath, filepath.Ext(gdsPath)) + ".yml"
}

// Load reads a layout and its port sidecar.
func Load(gdsPath string) (*Device, error) {
	name, ports, err := LoadPorts(SidecarPath(gdsPath))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(gdsPath)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()

	lib, err := ReadGDS(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", gdsPath, err)
	}
	top, ok := lib.Top(name)
	if !ok {
		return nil, fmt.Errorf("read %s: %w: no cells", gdsPath, ErrMalformedGDS)
	}
	if name == "" {
		name = top.Name
	}
	return &Device{
		Name:     name,
		Cell:     top.Name,
		Path:     gdsPath,
		Ports:    ports,
		Polygons: top.Polygons,
	}, nil
}

// Layers returns the distinct layers that carry polygons, sorted.
func (d *Device) Layers() []model.LayerKey {
	seen := make(map[model.LayerKey]bool)
	var keys []model.LayerKey
	for _, p := range d.Polygons {
		if !seen[p.Layer] {
			seen[p.Layer] = true
			keys = append(keys, p.Layer)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Layer != keys[j].Layer {
			return keys[i].Layer < keys[j].Layer
		}
		return keys[i].Datatype < keys[j].Datatype
	})
	return keys
}

// PolygonsOn returns the polygons drawn on one layer.
func (d *Device) PolygonsOn(key model.LayerKey) []Polygon {
	var out []Polygon
	for _, p := range d.Polygons {
		if p.Layer == key {
			out = append(out, p)
		}
	}
	return out
}

// Extent is the bounding box of all polygons, or of the ports when the
// layout has none.
func (d *Device) Extent() model.Extent {
	if len(d.Polygons) == 0 {
		return core.PortBounds(d.Ports)
	}
	e := d.Polygons[0].Extent()
	for _, p := range d.Polygons[1:] {
		e = e.Union(p.Extent())
	}
	return e
}

// CopyTo copies the layout and its sidecar to dstGDS and returns the device
// re-rooted there.
func CopyTo(d *Device, dstGDS string) (*Device, error) {
	if dir := filepath.Dir(dstGDS); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := copyFile(d.Path, dstGDS); err != nil {
		return nil, err
	}
	if err := copyFile(SidecarPath(d.Path), SidecarPath(dstGDS)); err != nil {
		return nil, err
	}
	out := *d
	out.Path = dstGDS
	return &out, nil
}

func copyFile(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
