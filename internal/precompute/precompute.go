// Package precompute fills the lookup tables served by the external
// backend. Sets are computed with the internal backend so both backends
// answer identically.
package precompute

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/catalogue"
	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/geometry"
	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/resolver"
	"github.com/GNS-Science/solvis-query/internal/util/workerpool"
)

// DefaultRadiiKm are the location radii precomputed when none are given.
var DefaultRadiiKm = []int{10, 20, 30, 40, 50, 100}

// Writer stores precomputed records.
type Writer interface {
	PutLocationRuptures(ctx context.Context, ruptureSetID, locationID string, radiusKm int, ruptures []int, distances []float64) error
	PutFaultRuptures(ctx context.Context, ruptureSetID, faultName string, ruptures []int) error
}

// Options configures a Job.
type Options struct {
	RadiiKm        []int
	Workers        int
	CircleVertices int
}

// Result counts the records written for one fault system.
type Result struct {
	FaultSystem     string
	RuptureSetID    string
	LocationRecords int
	FaultRecords    int
	Duration        time.Duration
}

// Job computes location and parent fault rupture sets for a solution.
type Job struct {
	locations []model.Location
	writer    Writer
	backend   *resolver.InternalBackend
	opts      Options
	logger    *zap.Logger
}

// NewJob creates a precompute job over locations.
func NewJob(locations []model.Location, writer Writer, opts Options, logger *zap.Logger) *Job {
	if len(opts.RadiiKm) == 0 {
		opts.RadiiKm = DefaultRadiiKm
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Job{
		locations: locations,
		writer:    writer,
		backend:   resolver.NewInternalBackend(opts.CircleVertices),
		opts:      opts,
		logger:    logger,
	}
}

// Run writes one record per location and radius and one per parent fault.
// It stops at the first failed record.
func (j *Job) Run(ctx context.Context, sol *catalogue.Solution) (Result, error) {
	ids := sol.RuptureSetIDs()
	if len(ids) != 1 {
		return Result{}, errors.AmbiguousRuptureSet(sol.FaultSystem(), ids)
	}
	rsID := ids[0]
	start := time.Now()

	pool := workerpool.New(ctx, workerpool.Config{
		Name:       "precompute-" + sol.FaultSystem(),
		MaxWorkers: j.opts.Workers,
		FailFast:   true,
		Logger:     j.logger,
	})

	var locCount, faultCount int64
	var tasks []workerpool.Task
	for _, loc := range j.locations {
		for _, radius := range j.opts.RadiiKm {
			tasks = append(tasks, j.locationTask(sol, rsID, loc, radius, &locCount))
		}
	}
	for _, name := range sol.ParentFaultNames() {
		tasks = append(tasks, j.faultTask(sol, rsID, name, &faultCount))
	}
	for _, t := range tasks {
		if err := pool.Submit(t); err != nil {
			break
		}
	}
	if err := pool.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		FaultSystem:     sol.FaultSystem(),
		RuptureSetID:    rsID,
		LocationRecords: int(locCount),
		FaultRecords:    int(faultCount),
		Duration:        time.Since(start),
	}
	j.logger.Info("precompute finished",
		zap.String("fault_system", res.FaultSystem),
		zap.String("rupture_set_id", rsID),
		zap.Int("location_records", res.LocationRecords),
		zap.Int("fault_records", res.FaultRecords),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (j *Job) locationTask(sol *catalogue.Solution, rsID string, loc model.Location, radius int, count *int64) workerpool.Task {
	return workerpool.Task{
		ID: fmt.Sprintf("location/%s/%d", loc.ID, radius),
		Fn: func(ctx context.Context) error {
			set, err := j.backend.LocationRuptureIDs(ctx, sol, []model.Location{loc}, radius, model.SetOpUnion)
			if err != nil {
				return err
			}
			ruptures := set.Sorted()
			if err := j.writer.PutLocationRuptures(ctx, rsID, loc.ID, radius, ruptures, Distances(sol, loc, ruptures)); err != nil {
				return err
			}
			atomic.AddInt64(count, 1)
			return nil
		},
	}
}

func (j *Job) faultTask(sol *catalogue.Solution, rsID, name string, count *int64) workerpool.Task {
	return workerpool.Task{
		ID: "fault/" + name,
		Fn: func(ctx context.Context) error {
			set, err := j.backend.FaultRuptureIDs(ctx, sol, []string{name}, model.SetOpUnion)
			if err != nil {
				return err
			}
			if err := j.writer.PutFaultRuptures(ctx, rsID, name, set.Sorted()); err != nil {
				return err
			}
			atomic.AddInt64(count, 1)
			return nil
		},
	}
}

// Distances returns, for each rupture, the distance in km from loc to the
// nearest trace vertex of its sections.
func Distances(sol *catalogue.Solution, loc model.Location, ruptures []int) []float64 {
	out := make([]float64, len(ruptures))
	for i, idx := range ruptures {
		best := math.Inf(1)
		for _, secIdx := range sol.SectionsForRupture(idx) {
			sec, ok := sol.Section(secIdx)
			if !ok {
				continue
			}
			for _, p := range sec.Trace {
				if d := geometry.DistanceKm(loc.Latitude, loc.Longitude, p[1], p[0]); d < best {
					best = d
				}
			}
		}
		if math.IsInf(best, 1) {
			best = 0
		}
		out[i] = math.Round(best*1000) / 1000
	}
	return out
}
