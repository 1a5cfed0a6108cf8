package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"archidoc/api/handlers"
	"archidoc/config"
	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/rbac"
	"archidoc/core/storage"
	"archidoc/core/store"
	"archidoc/core/utils"
)

// BackgroundWorker is anything the server starts and stops alongside the
// HTTP listener.
type BackgroundWorker interface {
	Start() error
	Stop()
}

type ServerDeps struct {
	Users       store.UsersStore
	Departments store.DepartmentsStore
	Categories  store.CategoriesStore
	Documents   store.DocumentsStore
	Access      store.AccessStore
	History     store.HistoryStore

	Objects        storage.ObjectStore
	DocsSvc        *docs.Service
	Uploader       *docs.Uploader
	SessionManager *auth.SessionManager
	Monitor        *auth.IdleMonitor
	Policy         *rbac.Policy
}

type Server struct {
	cfg            *config.AppConfig
	logger         *utils.Logger
	policy         *rbac.Policy
	sessionManager *auth.SessionManager
	monitor        *auth.IdleMonitor
	activity       *sessionActivity
	loginLimiter   *requestLimiter
	deps           ServerDeps
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:            cfg,
		logger:         logger,
		policy:         deps.Policy,
		sessionManager: deps.SessionManager,
		monitor:        deps.Monitor,
		activity:       newSessionActivity(),
		loginLimiter:   newLimiter(loginBurst(cfg), time.Minute),
		deps:           deps,
	}
}

func loginBurst(cfg *config.AppConfig) int {
	if cfg != nil && cfg.Security.LoginBurst > 0 {
		return cfg.Security.LoginBurst
	}
	return 5
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	authH := handlers.NewAuthHandler(s.cfg, s.sessionManager, s.monitor, s.logger)
	docsH := handlers.NewDocsHandler(s.deps.DocsSvc, s.deps.Access, s.deps.History, s.deps.Objects, s.logger)
	uploadH := handlers.NewUploadHandler(s.deps.Uploader, s.cfg.Upload, s.logger)
	usersH := handlers.NewUsersHandler(s.cfg, s.deps.Users, s.sessionManager, s.deps.History, s.logger)
	deptH := handlers.NewDepartmentsHandler(s.deps.Departments, s.logger)
	catH := handlers.NewCategoriesHandler(s.deps.Categories, s.logger)
	logsH := handlers.NewLogsHandler(s.deps.History, s.deps.Documents, s.logger)

	withSession := s.withSession
	require := s.requirePermission

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	r.MethodFunc(http.MethodPost, "/api/auth/login", s.rateLimitMiddleware(authH.Login))
	r.MethodFunc(http.MethodPost, "/api/auth/logout", withSession(authH.Logout))
	r.MethodFunc(http.MethodGet, "/api/auth/me", withSession(authH.Me))
	r.MethodFunc(http.MethodGet, "/api/auth/session", withSession(authH.SessionState))
	r.MethodFunc(http.MethodPost, "/api/auth/session/extend", withSession(authH.ExtendSession))

	r.MethodFunc(http.MethodGet, "/api/documents", withSession(require(rbac.PermDocumentsView)(docsH.List)))
	r.MethodFunc(http.MethodPost, "/api/documents", withSession(require(rbac.PermDocumentsCreate)(uploadH.Upload)))
	r.MethodFunc(http.MethodGet, "/api/documents/{id:[0-9]+}", withSession(require(rbac.PermDocumentsView)(docsH.Get)))
	r.MethodFunc(http.MethodPut, "/api/documents/{id:[0-9]+}", withSession(require(rbac.PermDocumentsEdit)(docsH.Update)))
	r.MethodFunc(http.MethodDelete, "/api/documents/{id:[0-9]+}", withSession(require(rbac.PermDocumentsDelete)(docsH.Delete)))
	r.MethodFunc(http.MethodGet, "/api/documents/{id:[0-9]+}/download", withSession(require(rbac.PermDocumentsView)(docsH.Download)))
	r.MethodFunc(http.MethodGet, "/api/documents/{id:[0-9]+}/history", withSession(require(rbac.PermLogsView)(docsH.History)))
	r.MethodFunc(http.MethodGet, "/api/documents/{id:[0-9]+}/access", withSession(require(rbac.PermDocumentsShare)(docsH.ListAccess)))
	r.MethodFunc(http.MethodPost, "/api/documents/{id:[0-9]+}/access", withSession(require(rbac.PermDocumentsShare)(docsH.GrantAccess)))
	r.MethodFunc(http.MethodDelete, "/api/documents/{id:[0-9]+}/access/{user_id:[0-9]+}", withSession(require(rbac.PermDocumentsShare)(docsH.RevokeAccess)))

	r.MethodFunc(http.MethodGet, "/api/departments", withSession(require(rbac.PermDepartmentsView)(deptH.List)))
	r.MethodFunc(http.MethodPost, "/api/departments", withSession(require(rbac.PermDepartmentsEdit)(deptH.Create)))
	r.MethodFunc(http.MethodPut, "/api/departments/{id:[0-9]+}", withSession(require(rbac.PermDepartmentsEdit)(deptH.Update)))
	r.MethodFunc(http.MethodDelete, "/api/departments/{id:[0-9]+}", withSession(require(rbac.PermDepartmentsEdit)(deptH.Delete)))

	r.MethodFunc(http.MethodGet, "/api/categories", withSession(require(rbac.PermCategoriesView)(catH.List)))
	r.MethodFunc(http.MethodPost, "/api/categories", withSession(require(rbac.PermCategoriesEdit)(catH.Create)))
	r.MethodFunc(http.MethodPut, "/api/categories/{id:[0-9]+}", withSession(require(rbac.PermCategoriesEdit)(catH.Update)))
	r.MethodFunc(http.MethodDelete, "/api/categories/{id:[0-9]+}", withSession(require(rbac.PermCategoriesEdit)(catH.Delete)))

	r.MethodFunc(http.MethodGet, "/api/logs", withSession(require(rbac.PermLogsView)(logsH.List)))
	r.MethodFunc(http.MethodGet, "/api/logs/export", withSession(require(rbac.PermLogsView)(logsH.Export)))
	r.MethodFunc(http.MethodGet, "/api/stats", withSession(require(rbac.PermStatsView)(logsH.Stats)))

	r.MethodFunc(http.MethodPost, "/api/admin/users", withSession(require(rbac.PermUsersManage)(usersH.Dispatch)))

	return r
}

// ListenAndServe blocks until the listener fails.
func (s *Server) ListenAndServe() error {
	addr := "0.0.0.0:8080"
	if s.cfg != nil && s.cfg.ListenAddr != "" {
		addr = s.cfg.ListenAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Printf("HTTP listening on %s", addr)
	return srv.ListenAndServe()
}
