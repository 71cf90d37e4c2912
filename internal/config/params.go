// Package config holds the typed simulation parameters shared by every
// solver back-end, their per-solver defaults and the override rules.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
)

var (
	// ErrUnknownOption is returned when an override names no known parameter.
	ErrUnknownOption = errors.New("unknown option")
	// ErrInvalidParams wraps every validation failure.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrMissingFile indicates a required input file does not exist.
	ErrMissingFile = errors.New("required file not found")
)

// Solver names a simulation back-end.
type Solver string

const (
	Lumerical Solver = "lumerical"
	Tidy3D    Solver = "tidy3d"
)

// ParseSolver validates a solver name.
func ParseSolver(s string) (Solver, error) {
	switch Solver(strings.ToLower(strings.TrimSpace(s))) {
	case Lumerical:
		return Lumerical, nil
	case Tidy3D:
		return Tidy3D, nil
	default:
		return "", fmt.Errorf("unsupported solver %q (want lumerical or tidy3d)", s)
	}
}

// Params is the full set of knobs for one simulation setup. Lengths are in
// micrometres.
type Params struct {
	Wavelength  float64 `json:"wavelength"`
	WavSpan     float64 `json:"wav_span"`
	WavStep     float64 `json:"wav_step"`
	Resolution  int     `json:"resolution"` // mesh cells per wavelength
	Temperature float64 `json:"temperature"`

	GDSFile       string `json:"gds_file"`
	PredefinedGDS string `json:"predefined_gds"` // copied to FileName.gds when set
	StackFile     string `json:"stack_file"`

	MaterialsDir    string `json:"materials_dir"`
	MaterialType    string `json:"material_type"`
	GuidingMaterial string `json:"guiding_material"`

	FileName string `json:"file_name"`
	TaskName string `json:"task_name"`

	ModeNum int `json:"mode_num"`
	ModeIdx int `json:"mode_idx"`

	FlagExtend Flag    `json:"flag_extend"`
	Extension  float64 `json:"extension"`

	FlagRunSimulation Flag `json:"flag_run_simulation"`
	FlagFluxMonitor   Flag `json:"flag_flux_monitor"`

	SolverZMin float64 `json:"solver_z_min"`
	SolverZMax float64 `json:"solver_z_max"`

	FlagBoolean    Flag `json:"flag_boolean"`
	ChangeCladding Flag `json:"change_cladding"`

	SolverPath string `json:"solver_path"`
	APIURL     string `json:"api_url"`
}

// Defaults returns the default parameters for a solver. now seeds the
// timestamped output and task names.
func Defaults(solver Solver, now time.Time) Params {
	stamp := "test_" + now.Format("20060102150405")
	p := Params{
		Wavelength:      0.85,
		WavSpan:         0.04,
		WavStep:         0.01,
		Resolution:      6,
		Temperature:     300,
		GDSFile:         "mmi_1x2_450_VISPIC2.gds",
		StackFile:       "stack_universal.json",
		MaterialsDir:    "materials_library",
		MaterialType:    "universal",
		GuidingMaterial: "SiN",
		FileName:        stamp,
		TaskName:        stamp,
		ModeNum:         5,
		ModeIdx:         1,
		FlagExtend:      true,
		Extension:       10,
		SolverZMin:      -0.5,
		SolverZMax:      0.7,
	}
	if solver == Tidy3D {
		p.Wavelength = 1.55
		p.WavSpan = 0.05
		p.SolverZMin = -1
		p.SolverZMax = 1
		p.APIURL = "https://tidy3d-api.simulation.cloud"
	}
	return p
}

// RetiredKeys are accepted in overrides and dropped. lumapi_path pointed the
// old tool at the Lumerical Python API, which nothing here loads.
var RetiredKeys = []string{"lumapi_path"}

// Keys lists every recognised option name.
func Keys() []string {
	t := reflect.TypeOf(Params{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := jsonName(t.Field(i)); tag != "" {
			keys = append(keys, tag)
		}
	}
	sort.Strings(keys)
	return keys
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// Apply overlays overrides onto p key by key. Values replace whole fields;
// nothing is merged below the top level. RetiredKeys are ignored, other
// unknown keys are rejected and p is left unchanged on any error.
func (p *Params) Apply(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}

	known := make(map[string]bool)
	for _, k := range Keys() {
		known[k] = true
	}
	retired := make(map[string]bool, len(RetiredKeys))
	for _, k := range RetiredKeys {
		retired[k] = true
	}
	var unknown []string
	for k := range overrides {
		if !known[k] && !retired[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(unknown, ", "))
	}

	base, err := p.Map()
	if err != nil {
		return err
	}
	for k, v := range overrides {
		if !retired[k] {
			base[k] = v
		}
	}
	raw, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("%w: encode overrides: %v", ErrInvalidParams, err)
	}
	var next Params
	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	*p = next
	return nil
}

// Map returns the parameters as a flat option map, the shape written to the
// audit file.
func (p Params) Map() (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks value ranges. Mode indices are 1-based for lumerical and
// 0-based for tidy3d.
func (p Params) Validate(solver Solver) error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(p.Wavelength > 0, "wavelength must be positive, got %g", p.Wavelength)
	check(p.WavSpan >= 0, "wav_span must not be negative, got %g", p.WavSpan)
	check(p.WavSpan < 2*p.Wavelength, "wav_span %g must be below twice the wavelength", p.WavSpan)
	check(p.WavStep > 0, "wav_step must be positive, got %g", p.WavStep)
	check(p.Resolution > 0, "resolution must be positive, got %d", p.Resolution)
	check(p.Temperature > 0, "temperature must be positive, got %g", p.Temperature)
	check(p.ModeNum >= 1, "mode_num must be at least 1, got %d", p.ModeNum)
	check(p.Extension >= 0, "extension must not be negative, got %g", p.Extension)
	check(p.SolverZMin < p.SolverZMax, "solver_z_min %g must be below solver_z_max %g", p.SolverZMin, p.SolverZMax)
	check(p.FileName != "", "file_name is required")
	check(p.GuidingMaterial == "SiN" || p.GuidingMaterial == "Si",
		"guiding_material must be SiN or Si, got %q", p.GuidingMaterial)

	switch solver {
	case Lumerical:
		check(p.ModeIdx >= 1 && p.ModeIdx <= p.ModeNum,
			"mode_idx %d out of range 1..%d", p.ModeIdx, p.ModeNum)
	case Tidy3D:
		check(p.ModeIdx >= 0 && p.ModeIdx < p.ModeNum,
			"mode_idx %d out of range 0..%d", p.ModeIdx, p.ModeNum-1)
		check(p.TaskName != "", "task_name is required")
		check(p.APIURL != "", "api_url is required")
	default:
		problems = append(problems, fmt.Sprintf("unsupported solver %q", solver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(problems, "; "))
	}
	return nil
}

// FrequencyPoints is the number of spectral samples across the span.
func (p Params) FrequencyPoints() int {
	return int(roundHalfEven(p.WavSpan/p.WavStep)) + 1
}

// SourceGDS is the layout the setup starts from.
func (p Params) SourceGDS() string {
	if p.PredefinedGDS != "" {
		return p.PredefinedGDS
	}
	return p.GDSFile
}

// ParamsPath is where the parameter audit file is written.
func (p Params) ParamsPath() string { return p.FileName + "_fdtd.json" }

// ResultsPath is where extracted results are written.
func (p Params) ResultsPath() string { return p.FileName + "_results.json" }

// MaterialFile returns the material table for a material name. Tidy3D
// uses fitted pole-residue media, lumerical sampled n/k tables.
func (p Params) MaterialFile(solver Solver, material string) string {
	name := p.MaterialType + "_" + material
	if solver == Tidy3D {
		name += "_pole"
	}
	return filepath.Join(p.MaterialsDir, name+".json")
}
