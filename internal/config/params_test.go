package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestDefaultsPerSolver(t *testing.T) {
	lum := Defaults(Lumerical, fixedNow)
	assert.Equal(t, 0.85, lum.Wavelength)
	assert.Equal(t, 1, lum.ModeIdx)
	assert.Equal(t, -0.5, lum.SolverZMin)
	assert.Equal(t, "test_20250314092653", lum.FileName)
	assert.True(t, bool(lum.FlagExtend))
	require.NoError(t, lum.Validate(Lumerical))

	td := Defaults(Tidy3D, fixedNow)
	assert.Equal(t, 1.55, td.Wavelength)
	assert.Equal(t, 1, td.ModeIdx)
	assert.Equal(t, 1.0, td.SolverZMax)
	assert.NotEmpty(t, td.APIURL)
	require.NoError(t, td.Validate(Tidy3D))
}

func TestApplyShallowOverride(t *testing.T) {
	p := Defaults(Lumerical, fixedNow)
	err := p.Apply(map[string]any{
		"wavelength":          1.31,
		"resolution":          12,
		"flag_run_simulation": 1,
		"flag_extend":         0,
		"file_name":           "out/crossing",
	})
	require.NoError(t, err)

	assert.Equal(t, 1.31, p.Wavelength)
	assert.Equal(t, 12, p.Resolution)
	assert.True(t, bool(p.FlagRunSimulation))
	assert.False(t, bool(p.FlagExtend))
	assert.Equal(t, "out/crossing", p.FileName)
	// untouched keys keep their defaults
	assert.Equal(t, 0.04, p.WavSpan)
	assert.Equal(t, "SiN", p.GuidingMaterial)
}

func TestApplyRejectsUnknownKeys(t *testing.T) {
	p := Defaults(Lumerical, fixedNow)
	before := p

	err := p.Apply(map[string]any{"wavelength": 1.0, "pml_layers": 64, "colour": "red"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOption))
	assert.Contains(t, err.Error(), "colour, pml_layers")
	assert.Equal(t, before, p, "params must be unchanged on error")
}

func TestApplyIgnoresRetiredKeys(t *testing.T) {
	p := Defaults(Lumerical, fixedNow)
	err := p.Apply(map[string]any{
		"lumapi_path": `C:\Program Files\Lumerical\v251\api\python`,
		"wavelength":  1.31,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.31, p.Wavelength)
	assert.Empty(t, p.SolverPath)
	assert.NotContains(t, Keys(), "lumapi_path")

	m, err := p.Map()
	require.NoError(t, err)
	assert.NotContains(t, m, "lumapi_path")
}

func TestApplyTypeMismatch(t *testing.T) {
	p := Defaults(Lumerical, fixedNow)
	err := p.Apply(map[string]any{"resolution": "fine"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	err = p.Apply(map[string]any{"flag_boolean": "maybe"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		solver Solver
		mutate func(*Params)
	}{
		"zero wavelength":      {Lumerical, func(p *Params) { p.Wavelength = 0 }},
		"zero step":            {Lumerical, func(p *Params) { p.WavStep = 0 }},
		"inverted z":           {Lumerical, func(p *Params) { p.SolverZMin, p.SolverZMax = 1, -1 }},
		"unknown material":     {Lumerical, func(p *Params) { p.GuidingMaterial = "LiNbO3" }},
		"lumerical mode zero":  {Lumerical, func(p *Params) { p.ModeIdx = 0 }},
		"tidy3d mode too high": {Tidy3D, func(p *Params) { p.ModeIdx = p.ModeNum }},
		"no task name":         {Tidy3D, func(p *Params) { p.TaskName = "" }},
		"negative extension":   {Lumerical, func(p *Params) { p.Extension = -2 }},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := Defaults(tc.solver, fixedNow)
			tc.mutate(&p)
			err := p.Validate(tc.solver)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParams))
		})
	}
}

func TestFrequencyPoints(t *testing.T) {
	p := Defaults(Lumerical, fixedNow)
	assert.Equal(t, 5, p.FrequencyPoints())
	p.WavSpan, p.WavStep = 0.02, 0.005
	assert.Equal(t, 5, p.FrequencyPoints())
	p.WavSpan = 0
	assert.Equal(t, 1, p.FrequencyPoints())
}

func TestKeysCoverOptions(t *testing.T) {
	keys := Keys()
	for _, k := range []string{"wavelength", "wav_span", "flag_boolean", "change_cladding", "solver_z_max", "task_name"} {
		assert.Contains(t, keys, k)
	}
}

func TestPathsAndMaterials(t *testing.T) {
	p := Defaults(Lumerical, fixedNow)
	p.FileName = "data/run1"
	assert.Equal(t, "data/run1_fdtd.json", p.ParamsPath())
	assert.Equal(t, "data/run1_results.json", p.ResultsPath())
	assert.Equal(t, filepath.Join("materials_library", "universal_SiN.json"), p.MaterialFile(Lumerical, "SiN"))
	assert.Equal(t, filepath.Join("materials_library", "universal_SiO2_pole.json"), p.MaterialFile(Tidy3D, "SiO2"))

	assert.Equal(t, p.GDSFile, p.SourceGDS())
	p.PredefinedGDS = "lib/crossing.gds"
	assert.Equal(t, "lib/crossing.gds", p.SourceGDS())
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	p := Defaults(Lumerical, fixedNow)
	p.GDSFile = filepath.Join(dir, "dev.gds")
	p.StackFile = filepath.Join(dir, "stack.json")
	p.MaterialsDir = dir

	err := p.CheckFiles(Lumerical)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingFile))

	for _, f := range []string{"dev.gds", "stack.json", "universal_SiN.json", "universal_SiO2.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("{}"), 0o644))
	}
	require.NoError(t, p.CheckFiles(Lumerical))
	assert.Error(t, p.CheckFiles(Tidy3D), "pole-residue files are still missing")
}

func TestParseSolver(t *testing.T) {
	s, err := ParseSolver(" Tidy3D ")
	require.NoError(t, err)
	assert.Equal(t, Tidy3D, s)
	_, err = ParseSolver("meep")
	assert.Error(t, err)
}
