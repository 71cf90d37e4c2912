package materials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNotPoleResidue is returned when a medium file is not a pole-residue model.
var ErrNotPoleResidue = errors.New("materials: not a PoleResidue medium")

// PoleResidue is a fitted dispersive medium. Raw keeps the file content so
// it can be embedded unchanged in a simulation document.
type PoleResidue struct {
	Name    string
	EpsInf  float64
	NumPole int
	Raw     json.RawMessage
}

// LoadPoleResidue reads a pole-residue medium file.
func LoadPoleResidue(path string) (PoleResidue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PoleResidue{}, err
	}
	var head struct {
		Type   string          `json:"type"`
		Name   string          `json:"name"`
		EpsInf float64         `json:"eps_inf"`
		Poles  json.RawMessage `json:"poles"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return PoleResidue{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if head.Type != "PoleResidue" {
		return PoleResidue{}, fmt.Errorf("%s: type %q: %w", path, head.Type, ErrNotPoleResidue)
	}
	var poles []json.RawMessage
	if len(head.Poles) > 0 {
		if err := json.Unmarshal(head.Poles, &poles); err != nil {
			return PoleResidue{}, fmt.Errorf("decode %s poles: %w", path, err)
		}
	}
	return PoleResidue{
		Name:    head.Name,
		EpsInf:  head.EpsInf,
		NumPole: len(poles),
		Raw:     json.RawMessage(data),
	}, nil
}
