// Package fdtd turns a layout and a parameter set into a solver-neutral
// simulation plan and drives a back-end through setup and run.
package fdtd

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/fdtd-bridge/core"
	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/layout"
	"github.com/signalsfoundry/fdtd-bridge/model"
	"github.com/signalsfoundry/fdtd-bridge/pdk"
)

// Logical material names used in structures; back-ends map them to media.
const (
	MaterialGuiding  = "guiding"
	MaterialCladding = "cladding"
)

const (
	// FieldMonitorZ is the height of the overhead field monitor.
	FieldMonitorZ = 0.1
	// InputMonitorInset places the input field monitor just inside o1.
	InputMonitorInset = 0.5
	// CladdingMargin pads the replacement cladding around the region.
	CladdingMargin = 5.0
	// CladdingIndex is the refractive index of the replacement cladding.
	CladdingIndex = 2.0

	// Run time is factor × region length × 2 / c.
	LumericalTimeFactor = 30.0
	Tidy3DTimeFactor    = 16.0
)

// Spectrum describes the excitation band. Wavelengths are in micrometres,
// frequencies in Hz.
type Spectrum struct {
	Center      float64   `json:"center"`
	Start       float64   `json:"wav_start"`
	Stop        float64   `json:"wav_stop"`
	Points      int       `json:"points"`
	Freq0       float64   `json:"freq0"`
	FreqWidth   float64   `json:"fwidth"`
	Frequencies []float64 `json:"frequencies"`
}

// FieldMonitor is a planar field recorder not tied to a port.
type FieldMonitor struct {
	Name   string     `json:"name"`
	Center model.Vec3 `json:"center"`
	Size   model.Vec3 `json:"size"`
	Normal model.Axis `json:"normal"`
}

// Plan is everything a back-end needs to build a simulation. All lengths
// are micrometres.
type Plan struct {
	Solver       config.Solver         `json:"solver"`
	DeviceName   string                `json:"device"`
	Cell         string                `json:"cell"`
	GDSPath      string                `json:"gds_path"`
	Ports        model.PortSet         `json:"ports"`
	DeviceExtent model.Extent          `json:"device_extent"`
	Region       model.Region          `json:"region"`
	Placements   []model.Placement     `json:"placements"`
	Structures   []model.Structure     `json:"structures"`
	Monitors     []FieldMonitor        `json:"field_monitors"`
	Spectrum     Spectrum              `json:"spectrum"`
	RunTime      float64               `json:"run_time"` // seconds
	Skipped      []model.LayerKey      `json:"skipped_layers,omitempty"`
	Layers       map[string][2]float64 `json:"layers"` // name -> zmin, zmax
}

// Source returns the source placement.
func (p *Plan) Source() model.Placement { return p.Placements[0] }

// PortMonitors returns the monitor placements in port order.
func (p *Plan) PortMonitors() []model.Placement { return p.Placements[1:] }

// BuildPlan computes the region, port placements, structures, spectrum and
// run time for one setup. Port errors abort before anything else is built.
func BuildPlan(params config.Params, solver config.Solver, dev *layout.Device, stack *pdk.Store) (*Plan, error) {
	deviceExtent := dev.Extent()
	var extended core.Extended
	if params.FlagExtend {
		var err error
		extended, err = core.ExtendPorts(dev.Ports, deviceExtent, params.Extension)
		if err != nil {
			return nil, err
		}
		deviceExtent = extended.Extent
	}

	region, err := core.BuildRegion(dev.Ports, core.PrimaryPort, deviceExtent, params.SolverZMin, params.SolverZMax)
	if err != nil {
		return nil, err
	}
	placements, err := core.PlacePorts(dev.Ports, core.PrimaryPort)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Solver:       solver,
		DeviceName:   dev.Name,
		Cell:         dev.Cell,
		GDSPath:      dev.Path,
		Ports:        dev.Ports,
		DeviceExtent: deviceExtent,
		Region:       region,
		Placements:   placements,
		Spectrum:     buildSpectrum(params),
		Layers:       make(map[string][2]float64),
	}

	factor := LumericalTimeFactor
	if solver == config.Tidy3D {
		factor = Tidy3DTimeFactor
	}
	plan.RunTime = factor * (region.XMax - region.XMin) * 2 / core.SpeedOfLightUm

	slabs, skipped := stack.Extrude(dev.Layers())
	plan.Skipped = skipped
	for _, slab := range slabs {
		plan.Layers[slab.Name] = [2]float64{slab.ZMin, slab.ZMax}
		plan.Structures = append(plan.Structures, slabStructures(solver, dev, slab)...)
	}

	for _, ext := range extended.Extensions {
		level, err := stack.LevelForKey(ext.Port.Layer)
		if err != nil {
			plan.Skipped = appendKey(plan.Skipped, ext.Port.Layer)
			continue
		}
		plan.Structures = append(plan.Structures, model.Structure{
			Name:     "extension_" + ext.Port.Name,
			Kind:     model.StructureBox,
			Layer:    ext.Port.Layer,
			ZMin:     level.ZMin,
			ZMax:     level.ZMax(),
			Min:      model.Vec3{X: ext.Min.X, Y: ext.Min.Y, Z: level.ZMin},
			Max:      model.Vec3{X: ext.Max.X, Y: ext.Max.Y, Z: level.ZMax()},
			Material: MaterialGuiding,
		})
	}

	if params.ChangeCladding {
		plan.Structures = append(plan.Structures, model.Structure{
			Name: "new clad",
			Kind: model.StructureBox,
			ZMin: 0,
			ZMax: region.ZMax + CladdingMargin,
			Min:  model.Vec3{X: region.XMin - CladdingMargin, Y: region.YMin - CladdingMargin, Z: 0},
			Max: model.Vec3{
				X: region.XMax + CladdingMargin,
				Y: region.YMax + CladdingMargin,
				Z: region.ZMax + CladdingMargin,
			},
			Material: MaterialCladding,
			Index:    CladdingIndex,
		})
	}

	monitors, err := fieldMonitors(solver, region, dev.Ports[core.PrimaryPort], plan.Source())
	if err != nil {
		return nil, err
	}
	plan.Monitors = monitors
	return plan, nil
}

func buildSpectrum(p config.Params) Spectrum {
	s := Spectrum{
		Center: p.Wavelength,
		Start:  p.Wavelength - 0.5*p.WavSpan,
		Stop:   p.Wavelength + 0.5*p.WavSpan,
		Points: p.FrequencyPoints(),
		Freq0:  core.WavelengthToFrequency(p.Wavelength),
	}
	fLow := core.WavelengthToFrequency(s.Stop)
	fHigh := core.WavelengthToFrequency(s.Start)
	s.FreqWidth = fHigh - fLow
	if s.Points < 2 {
		s.Frequencies = []float64{s.Freq0}
		return s
	}
	s.Frequencies = floats.Span(make([]float64, s.Points), fLow, fHigh)
	return s
}

// slabStructures emits a whole-layer import for lumerical and one extruded
// polygon per shape for tidy3d.
func slabStructures(solver config.Solver, dev *layout.Device, slab pdk.Slab) []model.Structure {
	name := dev.Name + "_" + slab.Name
	if solver == config.Lumerical {
		return []model.Structure{{
			Name:     slab.Name,
			Kind:     model.StructureGDSLayer,
			Layer:    slab.Key,
			ZMin:     slab.ZMin,
			ZMax:     slab.ZMax,
			Material: MaterialGuiding,
		}}
	}
	polys := dev.PolygonsOn(slab.Key)
	out := make([]model.Structure, 0, len(polys))
	for i, poly := range polys {
		out = append(out, model.Structure{
			Name:     fmt.Sprintf("%s_%d", name, i),
			Kind:     model.StructurePolySlab,
			Layer:    slab.Key,
			Vertices: poly.Points,
			ZMin:     slab.ZMin,
			ZMax:     slab.ZMax,
			Material: MaterialGuiding,
		})
	}
	return out
}

func fieldMonitors(solver config.Solver, region model.Region, primary model.Port, src model.Placement) ([]FieldMonitor, error) {
	size := region.Size()
	center := region.Center()
	overhead := FieldMonitor{
		Name:   "z-normal field",
		Center: model.Vec3{X: center.X, Y: center.Y, Z: FieldMonitorZ},
		Size:   model.Vec3{X: size.X, Y: size.Y, Z: 0},
		Normal: model.AxisZ,
	}
	if solver == config.Lumerical {
		overhead.Name = "z normal"
		return []FieldMonitor{overhead}, nil
	}

	at, err := core.Inset(primary, InputMonitorInset)
	if err != nil {
		return nil, err
	}
	input := FieldMonitor{
		Name:   "input field",
		Center: model.Vec3{X: at.X, Y: at.Y, Z: src.Center.Z},
		Size:   src.Size,
		Normal: src.Axis,
	}
	return []FieldMonitor{input, overhead}, nil
}

func appendKey(keys []model.LayerKey, key model.LayerKey) []model.LayerKey {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
