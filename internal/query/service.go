// Package query answers rupture and fault section queries against the
// catalogue, combining the resolver, aggregation, sorting and pagination.
package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/aggregate"
	"github.com/GNS-Science/solvis-query/internal/cache"
	"github.com/GNS-Science/solvis-query/internal/catalogue"
	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/location"
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/pagination"
	"github.com/GNS-Science/solvis-query/internal/resolver"
	"github.com/GNS-Science/solvis-query/internal/sortbin"
	"github.com/GNS-Science/solvis-query/internal/validation"
)

// Service answers filter queries.
type Service struct {
	catalogues   *catalogue.Registry
	locations    *location.Registry
	resolver     *resolver.Resolver
	memo         *cache.Memo
	validator    *validation.Validator
	sectionLimit int
	logger       *zap.Logger
}

// NewService creates a query service. A sectionLimit of zero uses
// DefaultSectionLimit.
func NewService(
	catalogues *catalogue.Registry,
	locations *location.Registry,
	res *resolver.Resolver,
	memo *cache.Memo,
	validator *validation.Validator,
	sectionLimit int,
	logger *zap.Logger,
) *Service {
	if sectionLimit <= 0 {
		sectionLimit = DefaultSectionLimit
	}
	return &Service{
		catalogues:   catalogues,
		locations:    locations,
		resolver:     res,
		memo:         memo,
		validator:    validator,
		sectionLimit: sectionLimit,
		logger:       logger,
	}
}

// WithBackend returns a service resolving rupture sets through b.
func (s *Service) WithBackend(b resolver.Backend) *Service {
	cp := *s
	cp.resolver = s.resolver.WithBackend(b)
	return &cp
}

// BackendName returns the name of the active resolver backend.
func (s *Service) BackendName() string {
	return s.resolver.Backend().Name()
}

// FilterRuptures returns one page of the filtered ruptures, sorted by
// sortKeys when given and in rupture index order otherwise.
func (s *Service) FilterRuptures(ctx context.Context, c model.FilterCriteria, sortKeys []model.SortKey, page PageRequest) (*model.RuptureConnection, error) {
	c, err := s.prepare(c)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateSort(sortKeys); err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePagination(page.First); err != nil {
		return nil, err
	}
	first := page.First
	if first == 0 {
		first = pagination.DefaultPageSize
	}

	sol, err := s.catalogues.Solution(ctx, c.ModelID, c.FaultSystem)
	if err != nil {
		return nil, err
	}

	rows, err := s.sortedRows(ctx, sol, c, sortKeys)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.EmptyResult(MsgNoRuptures)
	}

	p, err := pagination.BuildPage(rows, first, page.After)
	if err != nil {
		return nil, err
	}

	conn := &model.RuptureConnection{
		TotalCount: p.TotalCount,
		Edges:      make([]model.RuptureEdge, len(p.Edges)),
		PageInfo:   p.PageInfo,
	}
	for i, e := range p.Edges {
		conn.Edges[i] = model.RuptureEdge{
			Cursor: e.Cursor,
			Node:   model.NewRuptureDetail(c.ModelID, c.FaultSystem, e.Item),
		}
	}
	return conn, nil
}

// FilterRuptureSections aggregates the filtered ruptures by fault section.
// It fails when no section or more than the section limit remain.
func (s *Service) FilterRuptureSections(ctx context.Context, c model.FilterCriteria) (*SectionsResult, error) {
	c, err := s.prepare(c)
	if err != nil {
		return nil, err
	}
	sol, err := s.catalogues.Solution(ctx, c.ModelID, c.FaultSystem)
	if err != nil {
		return nil, err
	}

	rows, err := s.filteredRows(ctx, sol, c)
	if err != nil {
		return nil, err
	}
	sections, err := cache.GetOrCompute(ctx, s.memo, s.key(model.ScopeSectionAggregate, c),
		func(ctx context.Context) ([]model.AggregatedSection, error) {
			return aggregate.SectionAggregates(sol, rows), nil
		})
	if err != nil {
		return nil, err
	}

	if len(sections) == 0 {
		return nil, errors.EmptyResult(MsgNoSections)
	}
	if len(sections) > s.sectionLimit {
		return nil, errors.TooManyResults(MsgTooManySections, len(sections), s.sectionLimit)
	}

	return &SectionsResult{
		SectionsSummary: aggregate.Summarize(c.ModelID, c.FaultSystem, rows, sections),
		Filter:          c,
		Sections:        sections,
		FaultTraces:     aggregate.SectionsGeoJSON(sections),
	}, nil
}

// MFD returns the magnitude-frequency histogram of the filtered ruptures.
func (s *Service) MFD(ctx context.Context, c model.FilterCriteria) ([]model.MFDBin, error) {
	c, err := s.prepare(c)
	if err != nil {
		return nil, err
	}
	sol, err := s.catalogues.Solution(ctx, c.ModelID, c.FaultSystem)
	if err != nil {
		return nil, err
	}

	rows, err := s.filteredRows(ctx, sol, c)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.EmptyResult(MsgNoRuptures)
	}
	return cache.GetOrCompute(ctx, s.memo, s.key(model.ScopeMFD, c),
		func(ctx context.Context) ([]model.MFDBin, error) {
			return aggregate.MFD(rows), nil
		})
}

// RuptureDetail returns a single rupture with its section traces.
func (s *Service) RuptureDetail(ctx context.Context, modelID, faultSystem string, ruptureIndex int) (*RuptureDetailResult, error) {
	if err := s.validator.ValidateIdentifier("model_id", modelID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateIdentifier("fault_system", faultSystem); err != nil {
		return nil, err
	}
	sol, err := s.catalogues.Solution(ctx, modelID, faultSystem)
	if err != nil {
		return nil, err
	}
	row, ok := sol.Rupture(ruptureIndex)
	if !ok {
		return nil, errors.UnknownRupture(faultSystem, ruptureIndex)
	}

	detail := model.NewRuptureDetail(modelID, faultSystem, row)
	return &RuptureDetailResult{
		ID:            detail.NodeID(),
		RuptureDetail: detail,
		FaultTraces:   aggregate.RuptureGeoJSON(sol, ruptureIndex),
	}, nil
}

// ParentFaultNames lists the parent faults of a fault system.
func (s *Service) ParentFaultNames(ctx context.Context, modelID, faultSystem string) ([]string, error) {
	sol, err := s.catalogues.Solution(ctx, modelID, faultSystem)
	if err != nil {
		return nil, err
	}
	return sol.ParentFaultNames(), nil
}

// FaultSystems lists the fault systems of a model.
func (s *Service) FaultSystems(ctx context.Context, modelID string) ([]string, error) {
	cs, err := s.catalogues.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return cs.FaultSystems(), nil
}

// ModelIDs lists the configured models.
func (s *Service) ModelIDs() []string {
	return s.catalogues.ModelIDs()
}

// Locations lists the known locations.
func (s *Service) Locations() []model.Location {
	return s.locations.All()
}

// LocationsGeoJSON renders radius polygons around the given locations, or
// around every location when ids is empty.
func (s *Service) LocationsGeoJSON(ids []string, radiusKm int) (aggregate.FeatureCollection, error) {
	if radiusKm <= 0 {
		return aggregate.FeatureCollection{}, errors.InvalidArgument("radius_km must be positive", nil).
			WithDetail("radius_km", radiusKm)
	}
	locs := s.locations.All()
	if len(ids) > 0 {
		var err error
		if locs, err = s.locations.LookupAll(ids); err != nil {
			return aggregate.FeatureCollection{}, err
		}
	}
	return aggregate.LocationsGeoJSON(locs, radiusKm), nil
}

func (s *Service) prepare(c model.FilterCriteria) (model.FilterCriteria, error) {
	c = c.Normalize()
	if err := s.validator.ValidateFilter(c); err != nil {
		return c, err
	}
	return c, nil
}

// filteredRows resolves the id groups of c and applies the attribute
// window. The result is shared and must not be modified.
func (s *Service) filteredRows(ctx context.Context, sol *catalogue.Solution, c model.FilterCriteria) ([]model.RuptureRow, error) {
	return cache.GetOrCompute(ctx, s.memo, s.key(model.ScopeFilteredRuptures, c),
		func(ctx context.Context) ([]model.RuptureRow, error) {
			ids, err := s.resolver.Resolve(ctx, sol, c)
			if err != nil {
				return nil, err
			}
			rows := aggregate.FilterRuptures(sol, ids, c)
			s.logger.Debug("filtered ruptures",
				zap.String("model_id", c.ModelID),
				zap.String("fault_system", c.FaultSystem),
				zap.Bool("constrained", ids.Constrained),
				zap.Int("rows", len(rows)))
			return rows, nil
		})
}

func (s *Service) sortedRows(ctx context.Context, sol *catalogue.Solution, c model.FilterCriteria, sortKeys []model.SortKey) ([]model.RuptureRow, error) {
	rows, err := s.filteredRows(ctx, sol, c)
	if err != nil || len(sortKeys) == 0 {
		return rows, err
	}
	key := s.key(model.ScopeSortedRuptures, c).WithSort(sortKeys)
	return cache.GetOrCompute(ctx, s.memo, key, func(ctx context.Context) ([]model.RuptureRow, error) {
		return sortbin.Sort(rows, sortKeys, c.EffectiveMinimumRate())
	})
}

func (s *Service) key(scope model.Scope, c model.FilterCriteria) model.CacheKey {
	return model.CacheKey(string(model.KeyFor(scope, c)) + "|backend=" + s.BackendName())
}
