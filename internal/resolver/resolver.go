// Package resolver turns the location and co-rupture fault groups of a
// filter into rupture-id sets and merges them.
package resolver

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/cache"
	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/location"
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/setops"
)

const (
	GroupLocations = "locations"
	GroupFaults    = "faults"
)

// Recorder receives resolution timings.
type Recorder interface {
	RecordResolve(backend, group string, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordResolve(string, string, time.Duration, error) {}

// Resolver resolves constraint groups through a Backend and memoizes the
// resulting sets.
type Resolver struct {
	locations *location.Registry
	backend   Backend
	memo      *cache.Memo
	recorder  Recorder
	logger    *zap.Logger
}

// New creates a resolver. A nil recorder disables timing.
func New(locations *location.Registry, backend Backend, memo *cache.Memo, recorder Recorder, logger *zap.Logger) *Resolver {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{
		locations: locations,
		backend:   backend,
		memo:      memo,
		recorder:  recorder,
		logger:    logger,
	}
}

// WithBackend returns a resolver sharing this one's cache and registry but
// resolving through b.
func (r *Resolver) WithBackend(b Backend) *Resolver {
	cp := *r
	cp.backend = b
	return &cp
}

// Backend returns the active backend.
func (r *Resolver) Backend() Backend {
	return r.backend
}

// ResolveLocations returns the ruptures near the given locations merged
// with op. The second result is false when no locations were given, in
// which case the group places no restriction.
func (r *Resolver) ResolveLocations(ctx context.Context, modelID string, sol Solution, locationIDs []string, radiusKm int, op model.SetOperation) (model.RuptureIDSet, bool, error) {
	if len(locationIDs) == 0 {
		return nil, false, nil
	}
	if !op.Valid() {
		return nil, false, errors.UnsupportedSetOperation(op.String())
	}
	if radiusKm <= 0 {
		return nil, false, errors.InvalidArgument("radius_km must be positive when location_ids are given", nil).
			WithDetail("radius_km", radiusKm)
	}
	locs, err := r.locations.LookupAll(locationIDs)
	if err != nil {
		return nil, false, err
	}

	key := r.key(model.KeyFor(model.ScopeLocationRuptures, model.FilterCriteria{
		ModelID:          modelID,
		FaultSystem:      sol.FaultSystem(),
		LocationIDs:      locationIDs,
		RadiusKm:         radiusKm,
		FilterSetOptions: model.FilterSetOptions{MultipleLocations: op},
	}))

	set, err := cache.GetOrComputeShared(ctx, r.memo, key, func(ctx context.Context) (model.RuptureIDSet, error) {
		start := time.Now()
		set, err := r.backend.LocationRuptureIDs(ctx, sol, locs, radiusKm, op)
		r.recorder.RecordResolve(r.backend.Name(), GroupLocations, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolved location ruptures",
			zap.String("backend", r.backend.Name()),
			zap.String("fault_system", sol.FaultSystem()),
			zap.Strings("locations", locationIDs),
			zap.Int("radius_km", radiusKm),
			zap.Int("ruptures", set.Len()))
		return set, nil
	})
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// ResolveFaultNames returns the ruptures involving the named parent faults
// merged with op. Every name is checked against the solution before any
// set is computed.
func (r *Resolver) ResolveFaultNames(ctx context.Context, modelID string, sol Solution, faultNames []string, op model.SetOperation) (model.RuptureIDSet, bool, error) {
	if len(faultNames) == 0 {
		return nil, false, nil
	}
	if !op.Valid() {
		return nil, false, errors.UnsupportedSetOperation(op.String())
	}
	if err := ValidateFaultNames(sol, faultNames); err != nil {
		return nil, false, err
	}

	key := r.key(model.KeyFor(model.ScopeFaultRuptures, model.FilterCriteria{
		ModelID:             modelID,
		FaultSystem:         sol.FaultSystem(),
		CoruptureFaultNames: faultNames,
		FilterSetOptions:    model.FilterSetOptions{MultipleFaults: op},
	}))

	set, err := cache.GetOrComputeShared(ctx, r.memo, key, func(ctx context.Context) (model.RuptureIDSet, error) {
		start := time.Now()
		set, err := r.backend.FaultRuptureIDs(ctx, sol, faultNames, op)
		r.recorder.RecordResolve(r.backend.Name(), GroupFaults, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolved fault ruptures",
			zap.String("backend", r.backend.Name()),
			zap.String("fault_system", sol.FaultSystem()),
			zap.Strings("faults", faultNames),
			zap.Int("ruptures", set.Len()))
		return set, nil
	})
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// Resolve resolves both groups of c and merges them with
// locations_and_faults. Unconstrained groups are left out of the merge.
func (r *Resolver) Resolve(ctx context.Context, sol Solution, c model.FilterCriteria) (setops.Group, error) {
	c = c.Normalize()
	opts := c.FilterSetOptions
	if !opts.LocationsAndFaults.Valid() {
		return setops.Group{}, errors.UnsupportedSetOperation(opts.LocationsAndFaults.String())
	}
	if c.HasFaults() {
		if err := ValidateFaultNames(sol, c.CoruptureFaultNames); err != nil {
			return setops.Group{}, err
		}
	}

	locSet, locConstrained, err := r.ResolveLocations(ctx, c.ModelID, sol, c.LocationIDs, c.RadiusKm, opts.MultipleLocations)
	if err != nil {
		return setops.Group{}, err
	}
	faultSet, faultConstrained, err := r.ResolveFaultNames(ctx, c.ModelID, sol, c.CoruptureFaultNames, opts.MultipleFaults)
	if err != nil {
		return setops.Group{}, err
	}

	groups := []setops.Group{
		group(GroupLocations, locSet, locConstrained),
		group(GroupFaults, faultSet, faultConstrained),
	}
	return setops.CombineGroups(groups, opts.LocationsAndFaults)
}

// ValidateFaultNames fails with InvalidFaultName listing every name the
// solution does not know.
func ValidateFaultNames(sol Solution, names []string) error {
	var unknown []string
	for _, name := range names {
		if !sol.HasParentFault(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.InvalidFaultName(unknown)
	}
	return nil
}

// key scopes a cache key to the active backend.
func (r *Resolver) key(k model.CacheKey) model.CacheKey {
	return model.CacheKey(string(k) + "|backend=" + r.backend.Name())
}

func group(name string, set model.RuptureIDSet, constrained bool) setops.Group {
	if !constrained {
		return setops.Unconstrained(name)
	}
	return setops.Constrained(name, set)
}
