package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GNS-Science/solvis-query/internal/lookup"
	"github.com/GNS-Science/solvis-query/internal/precompute"
)

func newPrecomputeCmd(a *app) *cobra.Command {
	var (
		radii   []int
		workers int
		dryRun  bool
	)

	precomputeCmd := &cobra.Command{
		Use:   "precompute [model_id] [fault_system]",
		Short: "Fill the external backend lookup tables for a fault system",
		Long: `precompute resolves every location and radius, and every parent fault, with
the internal backend and writes the rupture sets to the lookup database.
With --dry-run the records are computed in memory and only counted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sol, err := a.catalogues.Solution(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			var writer precompute.Writer
			if dryRun {
				writer = lookup.NewMemoryStore()
			} else {
				if !a.cfg.Lookup.Enabled {
					return fmt.Errorf("lookup database is not enabled in the config; use --dry-run to compute without writing")
				}
				store, err := lookup.NewPostgresStore(a.cfg.Lookup.Host, a.cfg.Lookup.Port, a.cfg.Lookup.Database,
					a.cfg.Lookup.User, a.cfg.Lookup.Password, a.cfg.Lookup.MaxConns, a.cfg.Lookup.MinConns, a.logger)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				writer = store
			}

			job := precompute.NewJob(a.locations.All(), writer, precompute.Options{
				RadiiKm:        radii,
				Workers:        workers,
				CircleVertices: a.cfg.Resolver.CircleVertices,
			}, a.logger)
			res, err := job.Run(ctx, sol)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"model_id":         args[0],
				"fault_system":     res.FaultSystem,
				"rupture_set_id":   res.RuptureSetID,
				"location_records": res.LocationRecords,
				"fault_records":    res.FaultRecords,
				"duration":         res.Duration.String(),
				"dry_run":          dryRun,
			})
		},
	}
	precomputeCmd.Flags().IntSliceVar(&radii, "radii", precompute.DefaultRadiiKm, "location radii in km")
	precomputeCmd.Flags().IntVar(&workers, "workers", 4, "concurrent record writers")
	precomputeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute records in memory without writing them")
	return precomputeCmd
}
