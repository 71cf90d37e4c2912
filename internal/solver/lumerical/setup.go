package lumerical

import (
	"fmt"
	"path/filepath"

	"github.com/signalsfoundry/fdtd-bridge/core"
	"github.com/signalsfoundry/fdtd-bridge/internal/config"
	"github.com/signalsfoundry/fdtd-bridge/internal/fdtd"
	"github.com/signalsfoundry/fdtd-bridge/internal/materials"
	"github.com/signalsfoundry/fdtd-bridge/model"
)

// Material names created in the project.
const (
	GuidingMaterial    = "user guiding"
	BackgroundMaterial = "user SiO2"
)

// Medium is a sampled material to add to the project.
type Medium struct {
	Name    string
	Color   []float64 // RGBA
	Samples []materials.Sample
}

var materialColors = map[string][]float64{
	"SiN":  {0, 0, 1, 1},
	"Si":   {1, 0, 0, 1},
	"SiO2": {0, 1, 0, 0.3},
}

// LoadMedia reads the guiding and background n/k tables named by params.
func LoadMedia(params config.Params) ([]Medium, error) {
	specs := []struct{ name, material string }{
		{GuidingMaterial, params.GuidingMaterial},
		{BackgroundMaterial, "SiO2"},
	}
	out := make([]Medium, 0, len(specs))
	for _, s := range specs {
		path := params.MaterialFile(config.Lumerical, s.material)
		nk, err := materials.ReadNK(path, materials.WavelengthKey, materials.IndexKey, materials.ExtinctionKey)
		if err != nil {
			return nil, fmt.Errorf("material %s: %w", s.material, err)
		}
		out = append(out, Medium{
			Name:    s.name,
			Color:   materialColors[s.material],
			Samples: materials.SampledPermittivity(nk),
		})
	}
	return out, nil
}

func um(v float64) float64 { return v * core.Micrometer }

// BuildSetup renders the project setup: materials, geometry, the FDTD
// region, ports, the overhead monitor, and a save to the artifact path.
func BuildSetup(plan *fdtd.Plan, params config.Params, media []Medium, artifact string) *Script {
	s := &Script{}
	s.Call("clear").Call("deleteall").Call("switchtolayout")

	for _, m := range media {
		data := make(Matrix, len(m.Samples))
		for i, smp := range m.Samples {
			data[i] = []float64{smp.Frequency, smp.Permittivity}
		}
		s.Assign("mat", "addmaterial", "Sampled 3D data")
		s.Call("setmaterial", Ref("mat"), "name", m.Name)
		s.Call("setmaterial", m.Name, "sampled data", data)
		if m.Color != nil {
			s.Call("setmaterial", m.Name, "color", m.Color)
		}
		s.Call("setmaterial", m.Name, "tolerance", 0.001)
	}

	gdsPath, _ := filepath.Abs(plan.GDSPath)
	for _, st := range plan.Structures {
		switch st.Kind {
		case model.StructureGDSLayer:
			layer := fmt.Sprintf("%d:%d", st.Layer.Layer, st.Layer.Datatype)
			s.Call("gdsimport", gdsPath, plan.Cell, layer, GuidingMaterial, um(st.ZMin), um(st.ZMax))
			s.Set("name", st.Name)
		case model.StructureBox:
			addBox(s, st)
		}
	}

	r := plan.Region
	s.Call("addfdtd")
	s.Set("simulation temperature", params.Temperature)
	s.Set("dimension", "3D")
	s.Set("x min", um(r.XMin))
	s.Set("x max", um(r.XMax))
	s.Set("y min", um(r.YMin))
	s.Set("y max", um(r.YMax))
	s.Set("z min", um(r.ZMin))
	s.Set("z max", um(r.ZMax))
	s.Set("background material", BackgroundMaterial)
	s.Set("mesh type", "custom non-uniform")
	s.Set("mesh cells per wavelength", params.Resolution)
	s.Set("simulation time", plan.RunTime)
	for _, axis := range []string{"x", "y", "z"} {
		s.Set(axis+" min bc", "PML")
		s.Set(axis+" max bc", "PML")
	}

	s.Call("setglobalsource", "wavelength start", um(plan.Spectrum.Start))
	s.Call("setglobalsource", "wavelength stop", um(plan.Spectrum.Stop))
	s.Call("setglobalmonitor", "frequency points", plan.Spectrum.Points)

	modes := make([]float64, params.ModeNum)
	for i := range modes {
		modes[i] = float64(i + 1)
	}
	for _, pl := range plan.Placements {
		addPort(s, pl, modes, plan.Spectrum.Points)
	}

	src := plan.Source()
	s.Call("select", "FDTD::ports")
	s.Set("source port", src.PortName)
	s.Set("source mode", fmt.Sprintf("mode %d", params.ModeIdx))

	for _, m := range plan.Monitors {
		s.Call("adddftmonitor")
		s.Set("name", m.Name)
		s.Set("monitor type", "2D Z-normal")
		s.Set("x min", um(m.Center.X-0.5*m.Size.X))
		s.Set("x max", um(m.Center.X+0.5*m.Size.X))
		s.Set("y min", um(m.Center.Y-0.5*m.Size.Y))
		s.Set("y max", um(m.Center.Y+0.5*m.Size.Y))
		s.Set("z", um(m.Center.Z))
	}

	s.Call("save", artifact)
	return s
}

func addBox(s *Script, st model.Structure) {
	s.Call("addrect")
	s.Set("name", st.Name)
	if st.Material == fdtd.MaterialCladding {
		s.Set("material", "<Object defined dielectric>")
		s.Set("index", st.Index)
		s.Set("alpha", 0.3)
		s.Set("override mesh order from material database", 1)
		s.Set("mesh order", 3)
	} else {
		s.Set("material", GuidingMaterial)
	}
	s.Set("x min", um(st.Min.X))
	s.Set("x max", um(st.Max.X))
	s.Set("y min", um(st.Min.Y))
	s.Set("y max", um(st.Max.Y))
	s.Set("z min", um(st.Min.Z))
	s.Set("z max", um(st.Max.Z))
}

// addPort emits one port. Port direction in the project is the direction
// the port injects, which points into the device for sources and monitors
// alike.
func addPort(s *Script, pl model.Placement, modes []float64, samples int) {
	s.Call("addport")
	s.Set("name", pl.PortName)
	s.Set("x", um(pl.Center.X))
	s.Set("y", um(pl.Center.Y))
	if pl.Axis == model.AxisX {
		s.Set("injection axis", "x-axis")
		s.Set("y span", um(pl.Size.Y))
	} else {
		s.Set("injection axis", "y-axis")
		s.Set("x span", um(pl.Size.X))
	}
	s.Set("z", um(core.PortCenterZ))
	s.Set("z span", um(core.PortSpanZ))
	s.Set("direction", injection(pl))
	s.Set("mode selection", "user select")
	s.Set("selected mode numbers", modes)
	s.Set("number of field profile samples", samples)
}

// injection is the mode direction of a port object: always into the device,
// so outputs facing +x or +y render as "Backward".
func injection(pl model.Placement) string {
	dir := pl.Direction
	if pl.Role == model.RoleMonitor {
		if dir == model.DirectionForward {
			dir = model.DirectionBackward
		} else {
			dir = model.DirectionForward
		}
	}
	if dir == model.DirectionForward {
		return "Forward"
	}
	return "Backward"
}

// resultVars names the script variables holding a port's results.
func resultVars(port string) (transmission, expansion string) {
	return "T_" + port, "E_" + port
}

// BuildRun renders a script that loads the saved project, runs it and
// exports per-port transmission and mode expansion to exportPath.
func BuildRun(plan *fdtd.Plan, artifact, exportPath string) *Script {
	s := &Script{}
	s.Call("load", artifact)
	s.Call("run")

	ports := numberedPorts(plan)
	var vars []any
	for _, port := range ports {
		t, e := resultVars(port)
		s.Assign(t, "getresult", "FDTD::ports::"+port, "T")
		s.Assign(e, "getresult", "FDTD::ports::"+port, "expansion for port monitor")
		vars = append(vars, Ref(t), Ref(e))
	}
	s.Call("jsonsave", append([]any{exportPath}, vars...)...)
	return s
}

func numberedPorts(plan *fdtd.Plan) []string {
	names := make([]string, 0, len(plan.Placements))
	for _, pl := range plan.Placements {
		names = append(names, pl.PortName)
	}
	return names
}
