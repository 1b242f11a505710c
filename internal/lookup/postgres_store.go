// Package lookup stores precomputed rupture-id sets per rupture set, keyed
// by location and radius or by parent fault name.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS location_radius_ruptures (
	rupture_set_id  TEXT NOT NULL,
	location_radius TEXT NOT NULL,
	ruptures        INTEGER[] NOT NULL,
	distances       DOUBLE PRECISION[] NOT NULL,
	rupture_count   INTEGER NOT NULL,
	PRIMARY KEY (rupture_set_id, location_radius)
);
CREATE TABLE IF NOT EXISTS parent_fault_ruptures (
	rupture_set_id TEXT NOT NULL,
	fault_name     TEXT NOT NULL,
	ruptures       INTEGER[] NOT NULL,
	rupture_count  INTEGER NOT NULL,
	PRIMARY KEY (rupture_set_id, fault_name)
);
`

// LocationRadiusKey is the record key for one location and radius, e.g. "WLG:10".
func LocationRadiusKey(locationID string, radiusKm int) string {
	return fmt.Sprintf("%s:%d", locationID, radiusKm)
}

// MissingRecordError reports lookup keys that were never precomputed for a
// rupture set. An absent record is not an empty set.
type MissingRecordError struct {
	RuptureSetID string
	Keys         []string
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("no lookup record for %s in rupture set %s", strings.Join(e.Keys, ", "), e.RuptureSetID)
}

// collect orders found sets by keys, failing on any key without a record.
func collect(ruptureSetID string, keys []string, found map[string]model.RuptureIDSet) ([]model.RuptureIDSet, error) {
	sets := make([]model.RuptureIDSet, 0, len(keys))
	var missing []string
	for _, k := range keys {
		set, ok := found[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		sets = append(sets, set)
	}
	if len(missing) > 0 {
		return nil, &MissingRecordError{RuptureSetID: ruptureSetID, Keys: missing}
	}
	return sets, nil
}

// Fold merges per-item sets: union when union is true, otherwise intersection.
func Fold(sets []model.RuptureIDSet, union bool) model.RuptureIDSet {
	if len(sets) == 0 {
		return model.NewRuptureIDSet()
	}
	acc := sets[0].Clone()
	for _, s := range sets[1:] {
		if union {
			acc = acc.Union(s)
		} else {
			acc = acc.Intersect(s)
		}
	}
	return acc
}

// PostgresStore implements the precomputed lookup service on PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL lookup store
func NewPostgresStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStoreFromPool(pool, logger), nil
}

// NewPostgresStoreFromPool wraps an existing pool
func NewPostgresStoreFromPool(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger,
	}
}

// EnsureSchema creates the lookup tables when missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create lookup schema: %w", err)
	}
	return nil
}

// LocationRuptureIDs returns the ruptures within radiusKm of the locations,
// merged by union or intersection. A location without a record for the
// radius fails with MissingRecordError.
func (s *PostgresStore) LocationRuptureIDs(ctx context.Context, ruptureSetID string, locationIDs []string, radiusKm int, union bool) (model.RuptureIDSet, error) {
	keys := make([]string, len(locationIDs))
	for i, id := range locationIDs {
		keys[i] = LocationRadiusKey(id, radiusKm)
	}

	query := `
		SELECT location_radius, ruptures
		FROM location_radius_ruptures
		WHERE rupture_set_id = $1 AND location_radius = ANY($2)
	`

	found, err := s.querySets(ctx, query, ruptureSetID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get location ruptures: %w", err)
	}

	sets, err := collect(ruptureSetID, keys, found)
	if err != nil {
		s.logger.Warn("location lookup incomplete", zap.Error(err))
		return nil, err
	}
	return Fold(sets, union), nil
}

// FaultRuptureIDs returns the ruptures involving the named parent faults,
// merged by union or intersection. A fault without a record fails with
// MissingRecordError.
func (s *PostgresStore) FaultRuptureIDs(ctx context.Context, ruptureSetID string, faultNames []string, union bool) (model.RuptureIDSet, error) {
	query := `
		SELECT fault_name, ruptures
		FROM parent_fault_ruptures
		WHERE rupture_set_id = $1 AND fault_name = ANY($2)
	`

	found, err := s.querySets(ctx, query, ruptureSetID, faultNames)
	if err != nil {
		return nil, fmt.Errorf("failed to get fault ruptures: %w", err)
	}

	sets, err := collect(ruptureSetID, faultNames, found)
	if err != nil {
		s.logger.Warn("fault lookup incomplete", zap.Error(err))
		return nil, err
	}
	return Fold(sets, union), nil
}

// PutLocationRuptures upserts the record for one location and radius
func (s *PostgresStore) PutLocationRuptures(ctx context.Context, ruptureSetID, locationID string, radiusKm int, ruptures []int, distances []float64) error {
	query := `
		INSERT INTO location_radius_ruptures (rupture_set_id, location_radius, ruptures, distances, rupture_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rupture_set_id, location_radius)
		DO UPDATE SET ruptures = EXCLUDED.ruptures, distances = EXCLUDED.distances, rupture_count = EXCLUDED.rupture_count
	`

	_, err := s.pool.Exec(ctx, query,
		ruptureSetID,
		LocationRadiusKey(locationID, radiusKm),
		toInt32(ruptures),
		distances,
		len(ruptures),
	)
	if err != nil {
		return fmt.Errorf("failed to store location ruptures: %w", err)
	}
	return nil
}

// PutFaultRuptures upserts the record for one parent fault
func (s *PostgresStore) PutFaultRuptures(ctx context.Context, ruptureSetID, faultName string, ruptures []int) error {
	query := `
		INSERT INTO parent_fault_ruptures (rupture_set_id, fault_name, ruptures, rupture_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rupture_set_id, fault_name)
		DO UPDATE SET ruptures = EXCLUDED.ruptures, rupture_count = EXCLUDED.rupture_count
	`

	_, err := s.pool.Exec(ctx, query, ruptureSetID, faultName, toInt32(ruptures), len(ruptures))
	if err != nil {
		return fmt.Errorf("failed to store fault ruptures: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) querySets(ctx context.Context, query, ruptureSetID string, keys []string) (map[string]model.RuptureIDSet, error) {
	rows, err := s.pool.Query(ctx, query, ruptureSetID, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]model.RuptureIDSet, len(keys))
	for rows.Next() {
		var key string
		var ruptures []int32
		if err := rows.Scan(&key, &ruptures); err != nil {
			return nil, fmt.Errorf("failed to scan lookup record: %w", err)
		}
		set := model.NewRuptureIDSet()
		for _, r := range ruptures {
			set.Add(int(r))
		}
		found[key] = set
	}

	return found, rows.Err()
}

func toInt32(ids []int) []int32 {
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}
	return out
}
