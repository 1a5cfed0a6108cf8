package appbootstrap

import (
	"context"
	"fmt"

	"archidoc/api"
	"archidoc/config"
	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/maintenance"
	"archidoc/core/rbac"
	"archidoc/core/storage"
	"archidoc/core/store"
	"archidoc/core/utils"
)

type runtimeComposition struct {
	server  *api.Server
	objects storage.ObjectStore
	workers []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	departments := store.NewDepartmentsStore(db)
	categories := store.NewCategoriesStore(db)
	documents := store.NewDocumentsStore(db)
	access := store.NewAccessStore(db)
	history := store.NewHistoryStore(db)

	objects, err := newObjectStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}

	sessionManager := auth.NewSessionManager(sessions, users, history, cfg, logger)
	monitor := auth.NewIdleMonitor(cfg.IdleWarn(), cfg.IdleLogout(), logger)
	monitor.OnLogout = func(sessID string) {
		ctx, cancel := context.WithTimeout(context.Background(), idleLogoutTimeout)
		defer cancel()
		if err := sessionManager.Logout(ctx, sessID); err != nil {
			logger.Errorf("IDLE forced logout session=%s: %v", sessID, err)
		}
	}

	docsSvc := docs.NewService(documents, access, history, objects, logger)
	uploader := docs.NewUploader(docsSvc, cfg.Upload, logger)
	janitor := maintenance.NewJanitor(cfg, sessions, history, documents, objects, logger)

	server := api.NewServer(cfg, api.ServerDeps{
		Users:          users,
		Departments:    departments,
		Categories:     categories,
		Documents:      documents,
		Access:         access,
		History:        history,
		Objects:        objects,
		DocsSvc:        docsSvc,
		Uploader:       uploader,
		SessionManager: sessionManager,
		Monitor:        monitor,
		Policy:         policy,
	}, logger)

	return &runtimeComposition{
		server:  server,
		objects: objects,
		workers: []api.BackgroundWorker{janitor},
	}, nil
}

// newObjectStore connects to the configured S3 endpoint, falling back to
// the in-memory store only when no endpoint is configured at all.
func newObjectStore(cfg *config.AppConfig, logger *utils.Logger) (storage.ObjectStore, error) {
	if cfg.Storage.Endpoint == "" {
		logger.Printf("STORAGE no endpoint configured, using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	s3, err := storage.NewS3Store(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	return s3, nil
}
