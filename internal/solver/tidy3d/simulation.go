// Package tidy3d builds cloud FDTD simulation documents and submits them
// over HTTP.
package tidy3d

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/signalsfoundry/fdtd-bridge/core"
	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/fdtd"
	"github.com/signalsfoundry/fdtd-bridge/internal/materials"
	"github.com/signalsfoundry/fdtd-bridge/model"
)

// sourceFreqStep is the wavelength step the mode source samples its
// profile at, independent of wav_step.
const sourceFreqStep = 0.01

// Simulation is the top-level document.
type Simulation struct {
	Type         string          `json:"type"`
	Center       [3]float64      `json:"center"`
	Size         [3]float64      `json:"size"`
	RunTime      float64         `json:"run_time"`
	Medium       json.RawMessage `json:"medium"`
	GridSpec     GridSpec        `json:"grid_spec"`
	BoundarySpec BoundarySpec    `json:"boundary_spec"`
	Structures   []Structure     `json:"structures"`
	Sources      []ModeSource    `json:"sources"`
	Monitors     []Monitor       `json:"monitors"`
}

// GridSpec selects automatic meshing on every axis.
type GridSpec struct {
	Type       string   `json:"type"`
	GridX      AutoGrid `json:"grid_x"`
	GridY      AutoGrid `json:"grid_y"`
	GridZ      AutoGrid `json:"grid_z"`
	Wavelength float64  `json:"wavelength"`
}

// AutoGrid meshes with a minimum number of steps per wavelength.
type AutoGrid struct {
	Type           string `json:"type"`
	MinStepsPerWvl int    `json:"min_steps_per_wvl"`
}

// BoundarySpec holds the boundary of each axis.
type BoundarySpec struct {
	Type string   `json:"type"`
	X    Boundary `json:"x"`
	Y    Boundary `json:"y"`
	Z    Boundary `json:"z"`
}

// Boundary is the pair of conditions on one axis.
type Boundary struct {
	Type  string    `json:"type"`
	Plus  TypedOnly `json:"plus"`
	Minus TypedOnly `json:"minus"`
}

// TypedOnly is a component identified by its type alone.
type TypedOnly struct {
	Type string `json:"type"`
}

// Structure is a geometry filled with a medium.
type Structure struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Geometry Geometry        `json:"geometry"`
	Medium   json.RawMessage `json:"medium"`
}

// Geometry is a Box or a PolySlab.
type Geometry struct {
	Type           string       `json:"type"`
	Center         *[3]float64  `json:"center,omitempty"`
	Size           *[3]float64  `json:"size,omitempty"`
	Vertices       [][2]float64 `json:"vertices,omitempty"`
	SlabBounds     *[2]float64  `json:"slab_bounds,omitempty"`
	Axis           *int         `json:"axis,omitempty"`
	SidewallAngle  *float64     `json:"sidewall_angle,omitempty"`
	ReferencePlane string       `json:"reference_plane,omitempty"`
}

// GaussianPulse is the source time dependence.
type GaussianPulse struct {
	Type   string  `json:"type"`
	Freq0  float64 `json:"freq0"`
	FWidth float64 `json:"fwidth"`
}

// ModeSpec selects the solved modes.
type ModeSpec struct {
	Type           string `json:"type"`
	NumModes       int    `json:"num_modes"`
	GroupIndexStep bool   `json:"group_index_step"`
}

// ModeSource injects a waveguide mode.
type ModeSource struct {
	Type       string        `json:"type"`
	Name       string        `json:"name,omitempty"`
	Center     [3]float64    `json:"center"`
	Size       [3]float64    `json:"size"`
	SourceTime GaussianPulse `json:"source_time"`
	Direction  string        `json:"direction"`
	ModeSpec   ModeSpec      `json:"mode_spec"`
	ModeIndex  int           `json:"mode_index"`
	NumFreqs   int           `json:"num_freqs"`
}

// Monitor is a FieldMonitor, FluxMonitor or ModeMonitor.
type Monitor struct {
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Center   [3]float64 `json:"center"`
	Size     [3]float64 `json:"size"`
	Freqs    []float64  `json:"freqs"`
	ModeSpec *ModeSpec  `json:"mode_spec,omitempty"`
}

// Media are the resolved media of a simulation.
type Media struct {
	Guiding    materials.PoleResidue
	Background materials.PoleResidue
}

// LoadMedia reads the fitted guiding and background media named by params.
func LoadMedia(params config.Params) (Media, error) {
	guiding, err := materials.LoadPoleResidue(params.MaterialFile(config.Tidy3D, params.GuidingMaterial))
	if err != nil {
		return Media{}, fmt.Errorf("material %s: %w", params.GuidingMaterial, err)
	}
	background, err := materials.LoadPoleResidue(params.MaterialFile(config.Tidy3D, "SiO2"))
	if err != nil {
		return Media{}, fmt.Errorf("material SiO2: %w", err)
	}
	return Media{Guiding: guiding, Background: background}, nil
}

func vec(v model.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func typed(t string) TypedOnly { return TypedOnly{Type: t} }

func absorber() Boundary {
	return Boundary{Type: "Boundary", Plus: typed("Absorber"), Minus: typed("Absorber")}
}

// BuildSimulation converts a plan into a simulation document.
func BuildSimulation(plan *fdtd.Plan, params config.Params, media Media) (*Simulation, error) {
	grid := AutoGrid{Type: "AutoGrid", MinStepsPerWvl: params.Resolution}
	sim := &Simulation{
		Type:    "Simulation",
		Center:  vec(plan.Region.Center()),
		Size:    vec(plan.Region.Size()),
		RunTime: plan.RunTime,
		Medium:  media.Background.Raw,
		GridSpec: GridSpec{
			Type:       "GridSpec",
			GridX:      grid,
			GridY:      grid,
			GridZ:      grid,
			Wavelength: plan.Spectrum.Center,
		},
		BoundarySpec: BoundarySpec{Type: "BoundarySpec", X: absorber(), Y: absorber(), Z: absorber()},
	}

	for _, st := range plan.Structures {
		s, err := structure(st, media)
		if err != nil {
			return nil, err
		}
		sim.Structures = append(sim.Structures, s)
	}

	modeSpec := ModeSpec{Type: "ModeSpec", NumModes: params.ModeNum, GroupIndexStep: true}
	src := plan.Source()
	sim.Sources = []ModeSource{{
		Type:   "ModeSource",
		Name:   src.PortName,
		Center: vec(src.Center),
		Size:   vec(src.Size),
		SourceTime: GaussianPulse{
			Type:   "GaussianPulse",
			Freq0:  plan.Spectrum.Freq0,
			FWidth: plan.Spectrum.FreqWidth,
		},
		Direction: string(src.Direction),
		ModeSpec:  modeSpec,
		ModeIndex: params.ModeIdx,
		NumFreqs:  int(math.Round(params.WavSpan/sourceFreqStep + 1)),
	}}

	freqs := plan.Spectrum.Frequencies
	for _, m := range plan.Monitors {
		sim.Monitors = append(sim.Monitors, Monitor{
			Type:   "FieldMonitor",
			Name:   m.Name,
			Center: vec(m.Center),
			Size:   vec(m.Size),
			Freqs:  freqs,
		})
	}
	for _, pl := range plan.PortMonitors() {
		size := pl.Size
		size.Z = core.PortSpanZ
		if params.FlagFluxMonitor {
			sim.Monitors = append(sim.Monitors, Monitor{
				Type:   "FluxMonitor",
				Name:   pl.PortName + " flux",
				Center: vec(pl.Center),
				Size:   vec(size),
				Freqs:  freqs,
			})
		}
		spec := modeSpec
		sim.Monitors = append(sim.Monitors, Monitor{
			Type:     "ModeMonitor",
			Name:     pl.PortName + " mode",
			Center:   vec(pl.Center),
			Size:     vec(size),
			Freqs:    freqs,
			ModeSpec: &spec,
		})
	}
	return sim, nil
}

func structure(st model.Structure, media Media) (Structure, error) {
	out := Structure{Type: "Structure", Name: st.Name}
	switch st.Material {
	case fdtd.MaterialGuiding:
		out.Medium = media.Guiding.Raw
	case fdtd.MaterialCladding:
		raw, err := json.Marshal(map[string]any{"type": "Medium", "permittivity": st.Index * st.Index})
		if err != nil {
			return Structure{}, err
		}
		out.Medium = raw
	default:
		return Structure{}, fmt.Errorf("structure %q: unknown material %q", st.Name, st.Material)
	}

	switch st.Kind {
	case model.StructurePolySlab:
		verts := make([][2]float64, len(st.Vertices))
		for i, v := range st.Vertices {
			verts[i] = [2]float64{v.X, v.Y}
		}
		axis := 2
		angle := 0.0
		out.Geometry = Geometry{
			Type:           "PolySlab",
			Vertices:       verts,
			SlabBounds:     &[2]float64{st.ZMin, st.ZMax},
			Axis:           &axis,
			SidewallAngle:  &angle,
			ReferencePlane: "middle",
		}
	case model.StructureBox:
		center := [3]float64{0.5 * (st.Min.X + st.Max.X), 0.5 * (st.Min.Y + st.Max.Y), 0.5 * (st.Min.Z + st.Max.Z)}
		size := [3]float64{st.Max.X - st.Min.X, st.Max.Y - st.Min.Y, st.Max.Z - st.Min.Z}
		out.Geometry = Geometry{Type: "Box", Center: &center, Size: &size}
	default:
		return Structure{}, fmt.Errorf("structure %q: kind %q not supported by tidy3d", st.Name, st.Kind)
	}
	return out, nil
}
