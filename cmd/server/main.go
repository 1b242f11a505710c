// Package main provides the entry point for the rupture query service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GNS-Science/solvis-query/internal/cache"
	"github.com/GNS-Science/solvis-query/internal/catalogue"
	"github.com/GNS-Science/solvis-query/internal/config"
	"github.com/GNS-Science/solvis-query/internal/health"
	"github.com/GNS-Science/solvis-query/internal/httpapi"
	"github.com/GNS-Science/solvis-query/internal/location"
	"github.com/GNS-Science/solvis-query/internal/logging"
	"github.com/GNS-Science/solvis-query/internal/lookup"
	"github.com/GNS-Science/solvis-query/internal/metrics"
	"github.com/GNS-Science/solvis-query/internal/query"
	"github.com/GNS-Science/solvis-query/internal/resolver"
	"github.com/GNS-Science/solvis-query/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting rupture query service",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("default_backend", cfg.Resolver.Backend),
		zap.Int("archives", len(cfg.Catalogue.Archives)))

	m := metrics.NewMetrics()
	checker := health.NewHealthChecker(m, logger)

	locations, err := loadLocations(cfg.Locations.File)
	if err != nil {
		logger.Fatal("failed to load locations", zap.Error(err))
	}
	logger.Info("locations loaded", zap.Int("count", locations.Len()))

	catalogues := catalogue.NewRegistry(cfg.Catalogue.ArchivePaths(), logger)
	checker.Register("catalogue", health.PingFunc(func(ctx context.Context) error {
		for _, a := range cfg.Catalogue.Archives {
			if _, err := os.Stat(a.Path); err != nil {
				return fmt.Errorf("archive %s: %w", a.ModelID, err)
			}
		}
		return nil
	}))

	memoOpts := []cache.Option{
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithRecorder(m),
		cache.WithLogger(logger),
	}
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password,
			cfg.Redis.DB, cfg.Redis.KeyPrefix, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisStore.Close()
		memoOpts = append(memoOpts, cache.WithRemote(redisStore, cfg.Redis.TTL))
		checker.Register("redis", redisStore)
		logger.Info("redis cache tier enabled", zap.String("host", cfg.Redis.Host))
	}
	memo := cache.NewMemo(memoOpts...)

	validator := validation.NewValidatorWithLimits(cfg.Limits.MaxLocations, cfg.Limits.MaxFaultNames,
		cfg.Limits.MaxRadiusKm, cfg.Limits.MaxPageSize)

	internal := resolver.NewInternalBackend(cfg.Resolver.CircleVertices)
	res := resolver.New(locations, internal, memo, m, logger)
	base := query.NewService(catalogues, locations, res, memo, validator, cfg.Limits.SectionLimit, logger)
	services := map[string]*query.Service{resolver.BackendInternal: base}

	if cfg.Lookup.Enabled {
		store, err := lookup.NewPostgresStore(cfg.Lookup.Host, cfg.Lookup.Port, cfg.Lookup.Database,
			cfg.Lookup.User, cfg.Lookup.Password, cfg.Lookup.MaxConns, cfg.Lookup.MinConns, logger)
		if err != nil {
			logger.Fatal("failed to connect to lookup database", zap.Error(err))
		}
		defer store.Close()
		services[resolver.BackendExternal] = base.WithBackend(resolver.NewExternalBackend(store))
		checker.Register("lookup", store)
		logger.Info("external backend enabled", zap.String("host", cfg.Lookup.Host))
	}

	errorHandler := httpapi.NewErrorHandler(m, logger)
	handlers, err := httpapi.NewHandlers(services, cfg.Resolver.Backend, errorHandler, logger)
	if err != nil {
		logger.Fatal("failed to create handlers", zap.Error(err))
	}
	httpServer := httpapi.NewServer(cfg, handlers, errorHandler, checker, m, logger)
	httpServer.SetupRoutes()

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, m, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server started",
				zap.Int("port", cfg.Metrics.Port),
				zap.String("path", cfg.Metrics.Path))
			return metricsServer.Start()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		m.SetHealthStatus(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown metrics server", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("rupture query service shutdown complete")
}

func loadLocations(path string) (*location.Registry, error) {
	if path == "" {
		return location.Default()
	}
	return location.LoadFile(path)
}
