package catalogue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/GNS-Science/solvis-query/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS model_info (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS branches (
	fault_system   TEXT NOT NULL,
	branch_id      TEXT NOT NULL,
	rupture_set_id TEXT NOT NULL,
	weight         REAL NOT NULL DEFAULT 1.0,
	PRIMARY KEY (fault_system, branch_id)
);
CREATE TABLE IF NOT EXISTS ruptures (
	fault_system       TEXT NOT NULL,
	rupture_index      INTEGER NOT NULL,
	magnitude          REAL NOT NULL,
	area_m2            REAL NOT NULL,
	length_m           REAL NOT NULL,
	rake_mean          REAL NOT NULL,
	rate_weighted_mean REAL NOT NULL,
	rate_max           REAL NOT NULL,
	rate_min           REAL NOT NULL,
	rate_count         REAL NOT NULL,
	PRIMARY KEY (fault_system, rupture_index)
);
CREATE TABLE IF NOT EXISTS fault_sections (
	fault_system     TEXT NOT NULL,
	section_index    INTEGER NOT NULL,
	name             TEXT NOT NULL,
	parent_id        INTEGER NOT NULL,
	parent_name      TEXT NOT NULL,
	dip_deg          REAL NOT NULL,
	rake_deg         REAL NOT NULL,
	upper_depth      REAL NOT NULL,
	lower_depth      REAL NOT NULL,
	slip_rate        REAL NOT NULL,
	slip_rate_stddev REAL NOT NULL,
	trace            TEXT NOT NULL,
	PRIMARY KEY (fault_system, section_index)
);
CREATE TABLE IF NOT EXISTS rupture_sections (
	fault_system  TEXT NOT NULL,
	rupture_index INTEGER NOT NULL,
	section_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rupture_sections ON rupture_sections (fault_system, rupture_index);
`

// FaultSystemData is the serialisable content of one fault system.
type FaultSystemData struct {
	FaultSystem     string               `json:"fault_system"`
	Branches        []Branch             `json:"branches"`
	Ruptures        []model.RuptureRow   `json:"ruptures"`
	Sections        []model.FaultSection `json:"sections"`
	RuptureSections map[int][]int        `json:"rupture_sections"`
}

// CompositeData is the serialisable content of a composite solution.
type CompositeData struct {
	ModelID      string            `json:"model_id"`
	FaultSystems []FaultSystemData `json:"fault_systems"`
}

// Build indexes the data into a CompositeSolution.
func (d CompositeData) Build() (*CompositeSolution, error) {
	solutions := make([]*Solution, 0, len(d.FaultSystems))
	for _, fs := range d.FaultSystems {
		s, err := NewSolution(fs.FaultSystem, fs.Branches, fs.Ruptures, fs.Sections, fs.RuptureSections)
		if err != nil {
			return nil, err
		}
		solutions = append(solutions, s)
	}
	return NewCompositeSolution(d.ModelID, solutions...), nil
}

type sectionRow struct {
	FaultSystem    string  `db:"fault_system"`
	Index          int     `db:"section_index"`
	Name           string  `db:"name"`
	ParentID       int     `db:"parent_id"`
	ParentName     string  `db:"parent_name"`
	DipDeg         float64 `db:"dip_deg"`
	RakeDeg        float64 `db:"rake_deg"`
	UpperDepth     float64 `db:"upper_depth"`
	LowerDepth     float64 `db:"lower_depth"`
	SlipRate       float64 `db:"slip_rate"`
	SlipRateStdDev float64 `db:"slip_rate_stddev"`
	Trace          string  `db:"trace"`
}

type ruptureSectionRow struct {
	RuptureIndex int `db:"rupture_index"`
	SectionIndex int `db:"section_index"`
}

// Archive is a SQLite file holding one model's composite solution.
type Archive struct {
	db   *sqlx.DB
	path string
}

// OpenArchive opens an archive, creating its schema when missing.
func OpenArchive(path string) (*Archive, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise archive schema: %w", err)
	}

	return &Archive{db: db, path: path}, nil
}

// Close closes the archive
func (a *Archive) Close() error {
	return a.db.Close()
}

// Path returns the archive file path.
func (a *Archive) Path() string {
	return a.path
}

// Write replaces the archive contents with d.
func (a *Archive) Write(ctx context.Context, d CompositeData) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"model_info", "branches", "ruptures", "fault_sections", "rupture_sections"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO model_info (key, value) VALUES ('model_id', ?)`, d.ModelID); err != nil {
		return fmt.Errorf("failed to write model id: %w", err)
	}

	for _, fs := range d.FaultSystems {
		for _, b := range fs.Branches {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO branches (fault_system, branch_id, rupture_set_id, weight) VALUES (?, ?, ?, ?)`,
				fs.FaultSystem, b.ID, b.RuptureSetID, b.Weight); err != nil {
				return fmt.Errorf("failed to write branch %s: %w", b.ID, err)
			}
		}

		for _, r := range fs.Ruptures {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ruptures (fault_system, rupture_index, magnitude, area_m2, length_m, rake_mean,
					rate_weighted_mean, rate_max, rate_min, rate_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fs.FaultSystem, r.Index, r.Magnitude, r.Area, r.Length, r.RakeMean,
				r.RateWeightedMean, r.RateMax, r.RateMin, r.RateCount); err != nil {
				return fmt.Errorf("failed to write rupture %d: %w", r.Index, err)
			}
		}

		for _, sec := range fs.Sections {
			trace, err := json.Marshal(sec.Trace)
			if err != nil {
				return fmt.Errorf("failed to encode trace of section %d: %w", sec.Index, err)
			}
			row := sectionRow{
				FaultSystem:    fs.FaultSystem,
				Index:          sec.Index,
				Name:           sec.Name,
				ParentID:       sec.ParentID,
				ParentName:     sec.ParentName,
				DipDeg:         sec.DipDeg,
				RakeDeg:        sec.RakeDeg,
				UpperDepth:     sec.UpperDepth,
				LowerDepth:     sec.LowerDepth,
				SlipRate:       sec.SlipRate,
				SlipRateStdDev: sec.SlipRateStdDev,
				Trace:          string(trace),
			}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO fault_sections (fault_system, section_index, name, parent_id, parent_name, dip_deg,
					rake_deg, upper_depth, lower_depth, slip_rate, slip_rate_stddev, trace)
				VALUES (:fault_system, :section_index, :name, :parent_id, :parent_name, :dip_deg,
					:rake_deg, :upper_depth, :lower_depth, :slip_rate, :slip_rate_stddev, :trace)`, row); err != nil {
				return fmt.Errorf("failed to write section %d: %w", sec.Index, err)
			}
		}

		for rupture, secs := range fs.RuptureSections {
			for _, sec := range secs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO rupture_sections (fault_system, rupture_index, section_index) VALUES (?, ?, ?)`,
					fs.FaultSystem, rupture, sec); err != nil {
					return fmt.Errorf("failed to write rupture section %d/%d: %w", rupture, sec, err)
				}
			}
		}
	}

	return tx.Commit()
}

// Read loads the archive contents.
func (a *Archive) Read(ctx context.Context) (CompositeData, error) {
	var d CompositeData
	if err := a.db.GetContext(ctx, &d.ModelID, `SELECT value FROM model_info WHERE key = 'model_id'`); err != nil {
		return CompositeData{}, fmt.Errorf("failed to read model id: %w", err)
	}

	var systems []string
	if err := a.db.SelectContext(ctx, &systems, `
		SELECT fault_system FROM ruptures
		UNION SELECT fault_system FROM fault_sections
		UNION SELECT fault_system FROM branches
		ORDER BY fault_system`); err != nil {
		return CompositeData{}, fmt.Errorf("failed to list fault systems: %w", err)
	}

	for _, fs := range systems {
		data, err := a.readFaultSystem(ctx, fs)
		if err != nil {
			return CompositeData{}, err
		}
		d.FaultSystems = append(d.FaultSystems, data)
	}
	return d, nil
}

// ReadComposite loads and indexes the archive.
func (a *Archive) ReadComposite(ctx context.Context) (*CompositeSolution, error) {
	d, err := a.Read(ctx)
	if err != nil {
		return nil, err
	}
	return d.Build()
}

func (a *Archive) readFaultSystem(ctx context.Context, fs string) (FaultSystemData, error) {
	data := FaultSystemData{FaultSystem: fs, RuptureSections: make(map[int][]int)}

	if err := a.db.SelectContext(ctx, &data.Branches,
		`SELECT branch_id, rupture_set_id, weight FROM branches WHERE fault_system = ? ORDER BY branch_id`, fs); err != nil {
		return data, fmt.Errorf("failed to read branches of %s: %w", fs, err)
	}

	if err := a.db.SelectContext(ctx, &data.Ruptures, `
		SELECT rupture_index, magnitude, area_m2, length_m, rake_mean,
			rate_weighted_mean, rate_max, rate_min, rate_count
		FROM ruptures WHERE fault_system = ? ORDER BY rupture_index`, fs); err != nil {
		return data, fmt.Errorf("failed to read ruptures of %s: %w", fs, err)
	}

	var sections []sectionRow
	if err := a.db.SelectContext(ctx, &sections,
		`SELECT * FROM fault_sections WHERE fault_system = ? ORDER BY section_index`, fs); err != nil {
		return data, fmt.Errorf("failed to read sections of %s: %w", fs, err)
	}
	for _, row := range sections {
		var trace []model.LonLat
		if err := json.Unmarshal([]byte(row.Trace), &trace); err != nil {
			return data, fmt.Errorf("section %d of %s has a malformed trace: %w", row.Index, fs, err)
		}
		data.Sections = append(data.Sections, model.FaultSection{
			Index:          row.Index,
			Name:           row.Name,
			ParentID:       row.ParentID,
			ParentName:     row.ParentName,
			DipDeg:         row.DipDeg,
			RakeDeg:        row.RakeDeg,
			UpperDepth:     row.UpperDepth,
			LowerDepth:     row.LowerDepth,
			SlipRate:       row.SlipRate,
			SlipRateStdDev: row.SlipRateStdDev,
			Trace:          trace,
		})
	}

	var links []ruptureSectionRow
	if err := a.db.SelectContext(ctx, &links, `
		SELECT rupture_index, section_index FROM rupture_sections
		WHERE fault_system = ? ORDER BY rupture_index, section_index`, fs); err != nil {
		return data, fmt.Errorf("failed to read rupture sections of %s: %w", fs, err)
	}
	for _, l := range links {
		data.RuptureSections[l.RuptureIndex] = append(data.RuptureSections[l.RuptureIndex], l.SectionIndex)
	}

	return data, nil
}
