// Package location resolves location identifiers to coordinates.
package location

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
)

//go:embed locations.yaml
var defaultLocations []byte

type registryFile struct {
	Locations []model.Location `yaml:"locations"`
}

// Registry is an immutable set of named locations.
type Registry struct {
	byID    map[string]model.Location
	ordered []model.Location
}

// Default returns the built-in New Zealand location list.
func Default() (*Registry, error) {
	return Parse(defaultLocations)
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}
	return Parse(data)
}

// Load returns the registry at path, or the built-in list when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes and validates a YAML registry document.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse locations: %w", err)
	}

	r := &Registry{byID: make(map[string]model.Location, len(f.Locations))}
	for _, loc := range f.Locations {
		loc.ID = strings.TrimSpace(loc.ID)
		if loc.ID == "" {
			return nil, fmt.Errorf("location with empty id")
		}
		if _, dup := r.byID[loc.ID]; dup {
			return nil, fmt.Errorf("duplicate location id %s", loc.ID)
		}
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return nil, fmt.Errorf("location %s has invalid coordinates (%f, %f)", loc.ID, loc.Latitude, loc.Longitude)
		}
		r.byID[loc.ID] = loc
		r.ordered = append(r.ordered, loc)
	}
	return r, nil
}

// Lookup returns the location with the given id.
func (r *Registry) Lookup(id string) (model.Location, error) {
	loc, ok := r.byID[id]
	if !ok {
		return model.Location{}, errors.UnknownLocation(id)
	}
	return loc, nil
}

// LookupAll resolves ids in order, failing on the first unknown id.
func (r *Registry) LookupAll(ids []string) ([]model.Location, error) {
	out := make([]model.Location, 0, len(ids))
	for _, id := range ids {
		loc, err := r.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// All returns every location in file order.
func (r *Registry) All() []model.Location {
	out := make([]model.Location, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of locations.
func (r *Registry) Len() int {
	return len(r.ordered)
}
