package resolver

import (
	"context"
	stderrors "errors"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/geometry"
	"github.com/GNS-Science/solvis-query/internal/lookup"
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/setops"
)

const (
	BackendInternal = "internal"
	BackendExternal = "external"
)

// Solution is the view of a fault system solution the backends need.
type Solution interface {
	FaultSystem() string
	RuptureSetIDs() []string
	ParentFaultNames() []string
	HasParentFault(name string) bool
	RuptureIDsForParentFault(name string) (model.RuptureIDSet, error)
	RupturesIntersecting(c *geometry.Circle) model.RuptureIDSet
}

// Backend turns one constraint group into a rupture-id set. Every
// implementation must return the same set for the same arguments.
type Backend interface {
	Name() string
	LocationRuptureIDs(ctx context.Context, sol Solution, locations []model.Location, radiusKm int, op model.SetOperation) (model.RuptureIDSet, error)
	FaultRuptureIDs(ctx context.Context, sol Solution, faultNames []string, op model.SetOperation) (model.RuptureIDSet, error)
}

// LookupService answers rupture-id queries from precomputed tables. The
// union flag selects union (true) or intersection (false) across items.
type LookupService interface {
	LocationRuptureIDs(ctx context.Context, ruptureSetID string, locationIDs []string, radiusKm int, union bool) (model.RuptureIDSet, error)
	FaultRuptureIDs(ctx context.Context, ruptureSetID string, faultNames []string, union bool) (model.RuptureIDSet, error)
}

// InternalBackend computes sets in process from the solution geometry.
type InternalBackend struct {
	vertices int
}

// NewInternalBackend creates an internal backend. vertices sets the
// polygon resolution of location circles; zero uses the default.
func NewInternalBackend(vertices int) *InternalBackend {
	if vertices <= 0 {
		vertices = geometry.DefaultCircleVertices
	}
	return &InternalBackend{vertices: vertices}
}

// Name implements Backend.
func (b *InternalBackend) Name() string { return BackendInternal }

// LocationRuptureIDs implements Backend.
func (b *InternalBackend) LocationRuptureIDs(ctx context.Context, sol Solution, locations []model.Location, radiusKm int, op model.SetOperation) (model.RuptureIDSet, error) {
	sets := make([]model.RuptureIDSet, 0, len(locations))
	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		circle := geometry.NewCircleWithVertices(loc.Latitude, loc.Longitude, float64(radiusKm), b.vertices)
		sets = append(sets, sol.RupturesIntersecting(circle))
	}
	return setops.Combine(sets, op)
}

// FaultRuptureIDs implements Backend.
func (b *InternalBackend) FaultRuptureIDs(ctx context.Context, sol Solution, faultNames []string, op model.SetOperation) (model.RuptureIDSet, error) {
	sets := make([]model.RuptureIDSet, 0, len(faultNames))
	for _, name := range faultNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := sol.RuptureIDsForParentFault(name)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return setops.Combine(sets, op)
}

// ExternalBackend delegates to a precomputed LookupService. UNION and
// INTERSECTION go out as one call, DIFFERENCE is folded locally from one
// call per item.
type ExternalBackend struct {
	lookup LookupService
}

// NewExternalBackend creates an external backend over lookup.
func NewExternalBackend(lookup LookupService) *ExternalBackend {
	return &ExternalBackend{lookup: lookup}
}

// Name implements Backend.
func (b *ExternalBackend) Name() string { return BackendExternal }

// LocationRuptureIDs implements Backend.
func (b *ExternalBackend) LocationRuptureIDs(ctx context.Context, sol Solution, locations []model.Location, radiusKm int, op model.SetOperation) (model.RuptureIDSet, error) {
	rsID, err := ruptureSetID(sol)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.ID
	}

	query := func(items []string, union bool) (model.RuptureIDSet, error) {
		set, err := b.lookup.LocationRuptureIDs(ctx, rsID, items, radiusKm, union)
		if err != nil {
			return nil, lookupFailed("location lookup failed", rsID, err).
				WithDetail("radius_km", radiusKm)
		}
		return set, nil
	}
	return b.resolve(ids, op, query)
}

// FaultRuptureIDs implements Backend.
func (b *ExternalBackend) FaultRuptureIDs(ctx context.Context, sol Solution, faultNames []string, op model.SetOperation) (model.RuptureIDSet, error) {
	rsID, err := ruptureSetID(sol)
	if err != nil {
		return nil, err
	}

	query := func(items []string, union bool) (model.RuptureIDSet, error) {
		set, err := b.lookup.FaultRuptureIDs(ctx, rsID, items, union)
		if err != nil {
			return nil, lookupFailed("fault lookup failed", rsID, err)
		}
		return set, nil
	}
	return b.resolve(faultNames, op, query)
}

func (b *ExternalBackend) resolve(items []string, op model.SetOperation, query func([]string, bool) (model.RuptureIDSet, error)) (model.RuptureIDSet, error) {
	if !op.Valid() {
		return nil, errors.UnsupportedSetOperation(op.String())
	}
	if len(items) == 0 {
		return model.NewRuptureIDSet(), nil
	}
	if op != model.SetOpDifference {
		return query(items, op.UnionFlag())
	}

	sets := make([]model.RuptureIDSet, 0, len(items))
	for _, item := range items {
		set, err := query([]string{item}, true)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return setops.Combine(sets, op)
}

// lookupFailed wraps a lookup error, listing the records that were never
// precomputed when that is the cause.
func lookupFailed(message, rsID string, err error) *errors.QueryError {
	qe := errors.LookupFailed(message, err).WithDetail("rupture_set_id", rsID)
	var missing *lookup.MissingRecordError
	if stderrors.As(err, &missing) {
		qe.WithDetail("missing_records", missing.Keys)
	}
	return qe
}

// ruptureSetID returns the single rupture set shared by every branch.
func ruptureSetID(sol Solution) (string, error) {
	ids := sol.RuptureSetIDs()
	if len(ids) != 1 {
		return "", errors.AmbiguousRuptureSet(sol.FaultSystem(), ids)
	}
	return ids[0], nil
}
