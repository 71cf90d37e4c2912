package pdk

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/fdtd-bridge/model"
)

// UnknownLayer is returned by LayerName for keys with no registered name.
const UnknownLayer = "Unknown Layer"

var (
	// ErrLayerExists indicates a layer name is already registered.
	ErrLayerExists = errors.New("layer already exists")
	// ErrLayerNotFound indicates a layer name has no stack entry.
	ErrLayerNotFound = errors.New("layer not found")
)

// Store holds a process development kit's layer map and layer stack:
// names to GDS (layer, datatype) pairs, and names to vertical slabs.
type Store struct {
	mu sync.RWMutex

	name   string
	levels map[string]model.LayerLevel
	byKey  map[model.LayerKey]string
}

// NewStore constructs an empty store.
func NewStore(name string) *Store {
	return &Store{
		name:   name,
		levels: make(map[string]model.LayerLevel),
		byKey:  make(map[model.LayerKey]string),
	}
}

// Name returns the PDK name.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// AddLayer registers a named layer. It returns an error if the name is
// already taken.
func (s *Store) AddLayer(level model.LayerLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level.Name == "" {
		return fmt.Errorf("layer name is required")
	}
	if level.Thickness < 0 {
		return fmt.Errorf("layer %q: thickness %g must not be negative", level.Name, level.Thickness)
	}
	if _, exists := s.levels[level.Name]; exists {
		return fmt.Errorf("%w: %q", ErrLayerExists, level.Name)
	}
	s.levels[level.Name] = level
	// First registration wins when two names share a GDS pair.
	if _, taken := s.byKey[level.Layer]; !taken {
		s.byKey[level.Layer] = level.Name
	}
	return nil
}

// LayerName resolves a GDS (layer, datatype) pair to its name, or
// UnknownLayer.
func (s *Store) LayerName(key model.LayerKey) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.byKey[key]; ok {
		return name
	}
	return UnknownLayer
}

// Level returns the stack entry for a layer name.
func (s *Store) Level(name string) (model.LayerLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[name]
	return l, ok
}

// LevelForKey resolves a GDS pair straight to its stack entry.
func (s *Store) LevelForKey(key model.LayerKey) (model.LayerLevel, error) {
	name := s.LayerName(key)
	if l, ok := s.Level(name); ok {
		return l, nil
	}
	return model.LayerLevel{}, fmt.Errorf("%w: %d/%d", ErrLayerNotFound, key.Layer, key.Datatype)
}

// Levels returns a snapshot of all stack entries sorted by name.
func (s *Store) Levels() []model.LayerLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]model.LayerLevel, 0, len(s.levels))
	for _, l := range s.levels {
		res = append(res, l)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
