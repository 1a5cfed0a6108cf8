package appbootstrap

import (
	"context"
	"fmt"
	"time"

	"archidoc/config"
	"archidoc/core/store"
	"archidoc/core/storage"
	"archidoc/core/utils"
)

const (
	startupTimeout    = 30 * time.Second
	idleLogoutTimeout = 5 * time.Second
)

// Run wires the whole application: config, database, migrations, services,
// background workers and finally the HTTP listener. It blocks until the
// listener stops.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := utils.NewLogger()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := store.ApplyMigrations(ctx, db.DB, cfg.DBDriver, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	comp, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("compose runtime: %w", err)
	}
	if s3, ok := comp.objects.(*storage.S3Store); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
	}

	for _, w := range comp.workers {
		if err := w.Start(); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}
	defer func() {
		for _, w := range comp.workers {
			w.Stop()
		}
	}()

	return comp.server.ListenAndServe()
}
