package pdk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/fdtd-bridge/model"
	"gopkg.in/yaml.v3"
)

// stack file shapes – unexported so the on-disk format can evolve.
type stackFile struct {
	Name   string                    `json:"name" yaml:"name"`
	Layers map[string]stackLayerFile `json:"layers" yaml:"layers"`
}

type stackLayerFile struct {
	Layer     []int   `json:"layer" yaml:"layer"`
	ZMin      float64 `json:"zmin" yaml:"zmin"`
	Thickness float64 `json:"thickness" yaml:"thickness"`
}

// LoadStack reads a layer stack description from a JSON or YAML file,
// chosen by extension:
//
//	name: universal
//	layers:
//	  Si:   {layer: [1, 0], zmin: 0, thickness: 0.22}
//	  SLAB: {layer: [2, 0], zmin: 0, thickness: 0.09}
func LoadStack(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layer stack: %w", err)
	}

	var payload stackFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &payload)
	default:
		err = json.Unmarshal(data, &payload)
	}
	if err != nil {
		return nil, fmt.Errorf("decode layer stack %q: %w", path, err)
	}
	return buildStore(payload)
}

func buildStore(payload stackFile) (*Store, error) {
	if len(payload.Layers) == 0 {
		return nil, fmt.Errorf("layer stack %q defines no layers", payload.Name)
	}
	store := NewStore(payload.Name)
	for name, l := range payload.Layers {
		if len(l.Layer) != 2 {
			return nil, fmt.Errorf("layer %q: want [layer, datatype], got %v", name, l.Layer)
		}
		if err := store.AddLayer(model.LayerLevel{
			Name:      name,
			Layer:     model.LayerKey{Layer: l.Layer[0], Datatype: l.Layer[1]},
			ZMin:      l.ZMin,
			Thickness: l.Thickness,
		}); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Slab is a layer resolved to its vertical extent.
type Slab struct {
	Name string
	Key  model.LayerKey
	ZMin float64
	ZMax float64
}

// Extrude resolves each GDS layer to a slab. Layers without a stack entry
// (port markers, labels) are returned separately so callers can report them.
func (s *Store) Extrude(keys []model.LayerKey) (slabs []Slab, skipped []model.LayerKey) {
	for _, key := range keys {
		level, err := s.LevelForKey(key)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		slabs = append(slabs, Slab{
			Name: level.Name,
			Key:  key,
			ZMin: level.ZMin,
			ZMax: level.ZMax(),
		})
	}
	return slabs, skipped
}
