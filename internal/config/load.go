package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadOverrides decodes a parameter file into an override map. The format
// is chosen by extension: .json, .yaml/.yml or .toml.
func LoadOverrides(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	out := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &out)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	case ".toml":
		_, err = toml.Decode(string(data), &out)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	return out, nil
}

// ParseAssignments turns "key=value" strings into an override map. Values
// that parse as JSON (numbers, booleans, quoted strings, arrays) keep their
// type; anything else is taken as a plain string.
func ParseAssignments(assignments []string) (map[string]any, error) {
	out := make(map[string]any, len(assignments))
	for _, a := range assignments {
		key, raw, ok := strings.Cut(a, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed assignment %q (want key=value)", a)
		}
		raw = strings.TrimSpace(raw)

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

// CheckFiles verifies that every input the solver reads exists. It runs
// before anything is written so a bad path leaves no partial output.
func (p Params) CheckFiles(solver Solver) error {
	required := []string{
		p.SourceGDS(),
		p.StackFile,
		p.MaterialFile(solver, p.GuidingMaterial),
		p.MaterialFile(solver, "SiO2"),
	}
	var missing []string
	for _, path := range required {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFile, strings.Join(missing, ", "))
	}
	return nil
}
