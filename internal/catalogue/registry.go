package catalogue

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GNS-Science/solvis-query/internal/errors"
)

// Registry resolves model ids to composite solutions, loading each
// archive at most once.
type Registry struct {
	archives map[string]string
	mu       sync.RWMutex
	loaded   map[string]*CompositeSolution
	flight   singleflight.Group
	logger   *zap.Logger
}

// NewRegistry creates a registry over archive paths keyed by model id.
func NewRegistry(archives map[string]string, logger *zap.Logger) *Registry {
	paths := make(map[string]string, len(archives))
	for id, p := range archives {
		paths[id] = p
	}
	return &Registry{
		archives: paths,
		loaded:   make(map[string]*CompositeSolution),
		logger:   logger,
	}
}

// Register makes an in-memory composite available under its model id.
func (r *Registry) Register(cs *CompositeSolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[cs.ModelID()] = cs
}

// ModelIDs returns every known model id.
func (r *Registry) ModelIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for id := range r.archives {
		seen[id] = struct{}{}
	}
	for id := range r.loaded {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Get returns the composite solution for modelID.
func (r *Registry) Get(ctx context.Context, modelID string) (*CompositeSolution, error) {
	r.mu.RLock()
	cs, ok := r.loaded[modelID]
	path, known := r.archives[modelID]
	r.mu.RUnlock()
	if ok {
		return cs, nil
	}
	if !known {
		return nil, errors.UnknownModel(modelID)
	}

	v, err, _ := r.flight.Do(modelID, func() (interface{}, error) {
		r.mu.RLock()
		cs, ok := r.loaded[modelID]
		r.mu.RUnlock()
		if ok {
			return cs, nil
		}

		r.logger.Info("loading composite solution",
			zap.String("model_id", modelID),
			zap.String("archive", path))

		archive, err := OpenArchive(path)
		if err != nil {
			return nil, errors.CatalogueFailed("failed to open archive", err).WithDetail("model_id", modelID)
		}
		defer archive.Close()

		cs, err = archive.ReadComposite(ctx)
		if err != nil {
			return nil, errors.CatalogueFailed("failed to load archive", err).WithDetail("model_id", modelID)
		}
		if cs.ModelID() != modelID {
			r.logger.Warn("archive model id differs from configured id",
				zap.String("configured", modelID),
				zap.String("archive", cs.ModelID()))
			cs = NewCompositeSolution(modelID, cs.solutions()...)
		}

		r.Register(cs)
		r.logger.Info("composite solution loaded",
			zap.String("model_id", modelID),
			zap.Strings("fault_systems", cs.FaultSystems()))
		return cs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompositeSolution), nil
}

// Solution is a shortcut for Get followed by CompositeSolution.Solution.
func (r *Registry) Solution(ctx context.Context, modelID, faultSystem string) (*Solution, error) {
	cs, err := r.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return cs.Solution(faultSystem)
}

func (c *CompositeSolution) solutions() []*Solution {
	out := make([]*Solution, 0, len(c.systems))
	for _, fs := range c.FaultSystems() {
		out = append(out, c.systems[fs])
	}
	return out
}
