package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesFormats(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "p.json", `{"resolution": 8, "guiding_material": "Si", "flag_run_simulation": 1}`),
		writeFile(t, dir, "p.yaml", "resolution: 8\nguiding_material: Si\nflag_run_simulation: 1\n"),
		writeFile(t, dir, "p.toml", "resolution = 8\nguiding_material = \"Si\"\nflag_run_simulation = 1\n"),
	}
	for _, path := range files {
		overrides, err := LoadOverrides(path)
		require.NoError(t, err, path)

		p := Defaults(Lumerical, fixedNow)
		require.NoError(t, p.Apply(overrides), path)
		assert.Equal(t, 8, p.Resolution, path)
		assert.Equal(t, "Si", p.GuidingMaterial, path)
		assert.True(t, bool(p.FlagRunSimulation), path)
	}
}

func TestLoadOverridesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadOverrides(filepath.Join(dir, "nope.json"))
	assert.Error(t, err)

	_, err = LoadOverrides(writeFile(t, dir, "p.ini", "a=b"))
	assert.Error(t, err)

	_, err = LoadOverrides(writeFile(t, dir, "bad.json", "{"))
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{
		"wavelength=1.31",
		"flag_extend=false",
		"file_name=out/run 1",
		`task_name="quoted"`,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.31, got["wavelength"])
	assert.Equal(t, false, got["flag_extend"])
	assert.Equal(t, "out/run 1", got["file_name"])
	assert.Equal(t, "quoted", got["task_name"])

	_, err = ParseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"=3"})
	assert.Error(t, err)
}
