package app

import (
	"context"
	"time"

	"awful/internal/httpapi"
	"awful/internal/service"
)

// Serve runs the HTTP API, plus the sweeper and importer when enabled,
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config

	if cfg.Sweeper.Enabled {
		if err := a.Sweeper.Start(ctx, cfg.Sweeper.Schedule, cfg.Sweeper.Tenants); err != nil {
			return err
		}
		defer a.stop(a.Sweeper.Stop)
	}

	if cfg.Importer.Enabled {
		im := service.NewImporter(a.Blocks, a.Emitter, cfg.Importer.Dir, cfg.Importer.Tenant, a.Logger)
		if err := im.Start(ctx); err != nil {
			return err
		}
		defer a.stop(im.Stop)
	}

	srv := httpapi.New(a.Blocks, httpapi.Options{
		Metrics:      a.metricsHTTP,
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		Logger:       a.Logger,
	})
	return srv.Run(ctx, cfg.HTTP.ListenAddr)
}

func (a *App) stop(fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(ctx)
}
