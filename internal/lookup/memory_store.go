package lookup

import (
	"context"
	"sync"

	"github.com/GNS-Science/solvis-query/internal/model"
)

// MemoryStore is an in-process lookup store with the same semantics as
// PostgresStore.
type MemoryStore struct {
	mu        sync.RWMutex
	locations map[string]map[string]model.RuptureIDSet
	faults    map[string]map[string]model.RuptureIDSet
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locations: make(map[string]map[string]model.RuptureIDSet),
		faults:    make(map[string]map[string]model.RuptureIDSet),
	}
}

// LocationRuptureIDs returns the stored sets for the locations merged by
// union or intersection.
func (s *MemoryStore) LocationRuptureIDs(ctx context.Context, ruptureSetID string, locationIDs []string, radiusKm int, union bool) (model.RuptureIDSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := make([]string, len(locationIDs))
	for i, id := range locationIDs {
		keys[i] = LocationRadiusKey(id, radiusKm)
	}
	return s.fold(s.locations, ruptureSetID, keys, union)
}

// FaultRuptureIDs returns the stored sets for the faults merged by union
// or intersection.
func (s *MemoryStore) FaultRuptureIDs(ctx context.Context, ruptureSetID string, faultNames []string, union bool) (model.RuptureIDSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fold(s.faults, ruptureSetID, faultNames, union)
}

// PutLocationRuptures stores the record for one location and radius
func (s *MemoryStore) PutLocationRuptures(ctx context.Context, ruptureSetID, locationID string, radiusKm int, ruptures []int, _ []float64) error {
	s.put(s.locations, ruptureSetID, LocationRadiusKey(locationID, radiusKm), ruptures)
	return nil
}

// PutFaultRuptures stores the record for one parent fault
func (s *MemoryStore) PutFaultRuptures(ctx context.Context, ruptureSetID, faultName string, ruptures []int) error {
	s.put(s.faults, ruptureSetID, faultName, ruptures)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.locations {
		n += len(m)
	}
	for _, m := range s.faults {
		n += len(m)
	}
	return n
}

func (s *MemoryStore) put(table map[string]map[string]model.RuptureIDSet, ruptureSetID, key string, ruptures []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := table[ruptureSetID]
	if !ok {
		records = make(map[string]model.RuptureIDSet)
		table[ruptureSetID] = records
	}
	records[key] = model.NewRuptureIDSet(ruptures...)
}

func (s *MemoryStore) fold(table map[string]map[string]model.RuptureIDSet, ruptureSetID string, keys []string, union bool) (model.RuptureIDSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sets, err := collect(ruptureSetID, keys, table[ruptureSetID])
	if err != nil {
		return nil, err
	}
	return Fold(sets, union), nil
}
