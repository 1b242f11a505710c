package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/cache"
	"github.com/GNS-Science/solvis-query/internal/catalogue"
	"github.com/GNS-Science/solvis-query/internal/config"
	"github.com/GNS-Science/solvis-query/internal/location"
	"github.com/GNS-Science/solvis-query/internal/logging"
	"github.com/GNS-Science/solvis-query/internal/query"
	"github.com/GNS-Science/solvis-query/internal/resolver"
	"github.com/GNS-Science/solvis-query/internal/validation"
)

// app holds what every subcommand needs once the config is loaded.
type app struct {
	configPath string
	logLevel   string

	cfg        *config.Config
	logger     *zap.Logger
	locations  *location.Registry
	catalogues *catalogue.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "solvisctl",
		Short:         "Query and maintain rupture catalogues",
		Long:          `solvisctl runs rupture filter queries against configured catalogue archives and maintains the archives and precomputed lookup tables behind them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newQueryCmd(a),
		newFaultsCmd(a),
		newImportCmd(a),
		newPrecomputeCmd(a),
	)
	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.Logging.Level = a.logLevel
	cfg.Logging.Format = "console"
	cfg.Logging.Output = "stderr"

	a.cfg = cfg
	a.logger = logging.New(cfg.Logging)

	if cfg.Locations.File == "" {
		a.locations, err = location.Default()
	} else {
		a.locations, err = location.LoadFile(cfg.Locations.File)
	}
	if err != nil {
		return fmt.Errorf("failed to load locations: %w", err)
	}
	a.catalogues = catalogue.NewRegistry(cfg.Catalogue.ArchivePaths(), a.logger)
	return nil
}

// service builds an internal backend query service from the loaded config.
func (a *app) service() *query.Service {
	memo := cache.NewMemo(
		cache.WithMaxEntries(a.cfg.Cache.MaxEntries),
		cache.WithLogger(a.logger),
	)
	validator := validation.NewValidatorWithLimits(a.cfg.Limits.MaxLocations, a.cfg.Limits.MaxFaultNames,
		a.cfg.Limits.MaxRadiusKm, a.cfg.Limits.MaxPageSize)
	res := resolver.New(a.locations, resolver.NewInternalBackend(a.cfg.Resolver.CircleVertices), memo, nil, a.logger)
	return query.NewService(a.catalogues, a.locations, res, memo, validator, a.cfg.Limits.SectionLimit, a.logger)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
