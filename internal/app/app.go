// Package app wires configuration, storage, cache and services into a
// running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"awful/internal/blocks"
	"awful/internal/cache"
	"awful/internal/config"
	"awful/internal/dbclient"
	"awful/internal/logging"
	"awful/internal/metrics"
	"awful/internal/schema"
	"awful/internal/service"
	"awful/internal/storage"
	"awful/internal/tenant"
)

const sweepConcurrency = 4

// App owns every long-lived resource of the process.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	DB      *storage.DB
	Store   *storage.BlockStore
	Cache   cache.Cache
	Manager *blocks.Manager
	Blocks  *service.BlockService
	Sweeper *service.Sweeper
	Emitter service.EventEmitter

	metrics     metrics.Metrics
	metricsHTTP http.Handler
	logFile     *os.File
	mongo       *mongo.Client
}

// Options adjusts New for the command being run.
type Options struct {
	// LogWriter overrides the configured log output, e.g. to keep stdout
	// free for the MCP protocol.
	LogWriter io.Writer
}

// New builds an App from cfg. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Shutdown(context.Background())
		}
	}()

	if err = a.setupLogging(opts); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	a.Emitter = service.LogEmitter{Logger: a.Logger}

	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		a.metrics = prom
		a.metricsHTTP = prom.HTTPHandler()
	} else {
		a.metrics = metrics.NewNopMetrics()
	}

	types, err := schema.Build(cfg.BlockTypes)
	if err != nil {
		return nil, fmt.Errorf("block types: %w", err)
	}

	conn, dialect, err := dbclient.Open(ctx, cfg.Database.Settings())
	if err != nil {
		return nil, err
	}
	a.DB, err = storage.New(ctx, conn, dialect, storage.Options{
		Prefix:  cfg.Database.TablePrefix,
		Primary: cfg.Database.PrimaryTenant,
		Hosts:   cfg.Database.HostRefs(),
		Logger:  a.Logger,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.Store = storage.NewBlockStore(a.DB)

	if a.Cache, err = a.openCache(ctx); err != nil {
		return nil, err
	}

	a.Manager = blocks.NewManager(a.Store, a.Cache, types, blocks.ManagerOptions{
		Primary: cfg.Database.PrimaryTenant,
		Metrics: a.metrics,
		Logger:  a.Logger,
	})
	a.Blocks = service.NewBlockService(a.Manager, a.Emitter, a.Logger)
	a.Sweeper = service.NewSweeper(a.Store, a.Manager, a.Emitter, service.SweeperOptions{
		Timeout:     cfg.Sweeper.Timeout.Duration(),
		Concurrency: sweepConcurrency,
		Metrics:     a.metrics,
		Logger:      a.Logger,
	})
	return a, nil
}

func (a *App) setupLogging(opts Options) error {
	cfg := a.Config.Logging
	build := logging.New().WithLevel(cfg.Level).Console(cfg.Format == "text")
	switch {
	case opts.LogWriter != nil:
		build.FromWriter(opts.LogWriter)
	case strings.EqualFold(cfg.Output, "stdout"):
		build.FromWriter(os.Stdout)
	case strings.EqualFold(cfg.Output, "stderr"):
		build.FromWriter(os.Stderr)
	default:
		build.FromPath(cfg.Output)
	}
	data, err := build.Make()
	if err != nil {
		return err
	}
	a.logFile = data.LogFile
	a.Logger = data.Logger
	return nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	cfg := a.Config.Cache
	if cfg.Backend != "mongo" {
		return cache.NewMemory(), nil
	}
	client, dbName, err := dbclient.ConnectMongo(ctx, dbclient.MongoSettings{URI: cfg.URI, Database: cfg.Database}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.mongo = client
	return cache.NewMongo(client.Database(dbName).Collection(cfg.Collection)), nil
}

// Tenants returns the tenants given, or the primary tenant when none are.
func (a *App) Tenants(ids []tenant.ID) []tenant.ID {
	if len(ids) > 0 {
		return ids
	}
	return []tenant.ID{a.Config.Database.PrimaryTenant}
}

// Install creates or migrates the block tables of each tenant.
func (a *App) Install(ctx context.Context, tenants []tenant.ID) error {
	for _, t := range tenants {
		if err := a.DB.Install(ctx, t); err != nil {
			return fmt.Errorf("install tenant %d: %w", t, err)
		}
		a.Logger.Info().Int64("tenant", int64(t)).Msg("installed")
	}
	return nil
}

// Uninstall drops the block tables of each tenant.
func (a *App) Uninstall(ctx context.Context, tenants []tenant.ID) error {
	for _, t := range tenants {
		if err := a.DB.Uninstall(ctx, t); err != nil {
			return fmt.Errorf("uninstall tenant %d: %w", t, err)
		}
		a.Logger.Info().Int64("tenant", int64(t)).Msg("uninstalled")
	}
	return nil
}

// Shutdown releases everything New opened.
func (a *App) Shutdown(ctx context.Context) {
	var errs []error
	if a.mongo != nil {
		errs = append(errs, a.mongo.Disconnect(ctx))
		a.mongo = nil
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
		a.DB = nil
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn().Err(err).Msg("shutdown")
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}
