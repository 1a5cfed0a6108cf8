package api

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"archidoc/api/handlers"
	"archidoc/config"
	"archidoc/core/auth"
	"archidoc/core/rbac"
	"archidoc/core/store"
)

type testEnv struct {
	server   *Server
	users    store.UsersStore
	sessions *auth.SessionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	raw.SetMaxOpenConns(1)
	if err := store.ApplyMigrations(context.Background(), raw, "sqlite", nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db := store.Wrap(raw, "sqlite")

	cfg := &config.AppConfig{
		Pepper: "test-pepper",
		Security: config.SecurityConfig{
			LoginBurst:     2,
			TrustedProxies: []string{"10.0.0.1"},
		},
	}
	users := store.NewUsersStore(db)
	sessions := auth.NewSessionManager(store.NewSessionsStore(db), users, store.NewHistoryStore(db), cfg, nil)
	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	server := NewServer(cfg, ServerDeps{
		Users:          users,
		SessionManager: sessions,
		Policy:         policy,
	}, nil)
	return &testEnv{server: server, users: users, sessions: sessions}
}

func (env *testEnv) seedUser(t *testing.T, username, role string) (*store.UserProfile, *store.SessionRecord) {
	t.Helper()
	ctx := context.Background()
	hash, err := auth.HashPassword("motdepasse", "test-pepper")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &store.UserProfile{Username: username, Role: role, Department: "Finances", PasswordHash: hash}
	if _, err := env.users.Create(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	sess, err := env.sessions.Create(ctx, user, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return user, sess
}

func authedRequest(method, path string, sess *store.SessionRecord, withCSRF bool) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: sess.ID})
	if withCSRF {
		r.AddCookie(&http.Cookie{Name: handlers.CSRFCookieName, Value: sess.CSRFToken})
		r.Header.Set("X-CSRF-Token", sess.CSRFToken)
	}
	return r
}

func okHandler(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestWithSessionRejectsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	var called bool
	h := env.server.withSession(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	bogus := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	bogus.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: "not-a-session"})
	h.ServeHTTP(rec, bogus)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus cookie: status = %d", rec.Code)
	}
	if called {
		t.Error("handler ran without a session")
	}
}

func TestWithSessionPutsProfileInContext(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.seedUser(t, "a.diallo", "archiviste")

	var gotRole string
	h := env.server.withSession(func(w http.ResponseWriter, r *http.Request) {
		if s := auth.SessionFrom(r.Context()); s == nil || s.ID != sess.ID {
			t.Errorf("session missing from context: %+v", s)
		}
		if p := auth.ProfileFrom(r.Context()); p != nil {
			gotRole = p.Role
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/documents", sess, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotRole != "archiviste" {
		t.Errorf("profile role = %q", gotRole)
	}
}

func TestWithSessionRequiresCSRFOnMutations(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.seedUser(t, "a.diallo", "admin")
	var called bool
	h := env.server.withSession(okHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/documents", sess, false))
	if rec.Code != http.StatusForbidden {
		t.Errorf("POST without token: status = %d", rec.Code)
	}
	if called {
		t.Error("handler ran without csrf token")
	}

	rec = httptest.NewRecorder()
	wrong := authedRequest(http.MethodPost, "/api/documents", sess, true)
	wrong.Header.Set("X-CSRF-Token", "stolen")
	h.ServeHTTP(rec, wrong)
	if rec.Code != http.StatusForbidden {
		t.Errorf("POST with wrong token: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/documents", sess, true))
	if rec.Code != http.StatusOK {
		t.Errorf("POST with matching token: status = %d", rec.Code)
	}

	// GET never needs the token.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/documents", sess, false))
	if rec.Code != http.StatusOK {
		t.Errorf("GET without token: status = %d", rec.Code)
	}
}

func TestWithSessionEndsSessionOfDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	user, sess := env.seedUser(t, "a.diallo", "archiviste")
	ctx := context.Background()

	user.Status = store.UserStatusInactive
	if err := env.users.Update(ctx, user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	var called bool
	h := env.server.withSession(okHandler(&called))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/documents", sess, false))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deactivated user: status = %d", rec.Code)
	}
	if called {
		t.Error("handler ran for a deactivated user")
	}

	// The stale session is dropped, not just rejected.
	left, err := env.sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if left != nil {
		t.Error("session survived the deactivation check")
	}
}

func TestRequirePermissionUsesLiveRole(t *testing.T) {
	env := newTestEnv(t)
	user, sess := env.seedUser(t, "a.diallo", "utilisateur")
	ctx := context.Background()

	guard := env.server.requirePermission(rbac.PermUsersManage)
	var called bool
	h := env.server.withSession(guard(okHandler(&called)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/admin/users", sess, false))
	if rec.Code != http.StatusForbidden {
		t.Errorf("utilisateur hitting admin route: status = %d", rec.Code)
	}
	if called {
		t.Error("handler ran without permission")
	}

	// The session row still says utilisateur; the check must follow the
	// current user row instead.
	user.Role = "admin"
	if err := env.users.Update(ctx, user); err != nil {
		t.Fatalf("promote: %v", err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/admin/users", sess, false))
	if rec.Code != http.StatusOK || !called {
		t.Errorf("promoted admin: status = %d called=%v", rec.Code, called)
	}
}

func TestArchivistInheritsLocalAdminDocumentRights(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.seedUser(t, "a.diallo", "archiviste")

	guard := env.server.requirePermission(rbac.PermDocumentsCreate)
	var called bool
	h := env.server.withSession(guard(okHandler(&called)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/documents", sess, true))
	if rec.Code != http.StatusOK || !called {
		t.Errorf("archiviste create: status = %d called=%v", rec.Code, called)
	}
}

func TestLoginRateLimiter(t *testing.T) {
	env := newTestEnv(t)
	var hits int
	h := env.server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})

	body := []byte(`{"username":"a.diallo","password":"x"}`)
	do := func(remote string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	if code := do("192.0.2.10:1000"); code != http.StatusOK {
		t.Fatalf("first attempt: %d", code)
	}
	if code := do("192.0.2.10:1001"); code != http.StatusOK {
		t.Fatalf("second attempt: %d", code)
	}
	if code := do("192.0.2.10:1002"); code != http.StatusTooManyRequests {
		t.Errorf("burst exceeded: status = %d", code)
	}
	if hits != 2 {
		t.Errorf("handler hits = %d", hits)
	}

	// Same username from a fresh IP is still throttled by the per-user
	// bucket once its own burst is spent.
	if code := do("192.0.2.20:1000"); code != http.StatusTooManyRequests {
		t.Errorf("per-username bucket: status = %d", code)
	}
}

func TestLoginRecordsProxyResolvedIP(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a.diallo", "archiviste")

	authH := handlers.NewAuthHandler(env.server.cfg, env.sessions, nil, nil)
	h := env.server.rateLimitMiddleware(authH.Login)

	body := []byte(`{"username":"a.diallo","password":"motdepasse"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	r.RemoteAddr = "10.0.0.1:5000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	var sessID string
	for _, c := range rec.Result().Cookies() {
		if c.Name == handlers.SessionCookieName {
			sessID = c.Value
		}
	}
	if sessID == "" {
		t.Fatal("no session cookie set")
	}
	sess, err := env.sessions.Get(context.Background(), sessID)
	if err != nil || sess == nil {
		t.Fatalf("session lookup: sess=%v err=%v", sess, err)
	}
	// The session must record the forwarded client, not the proxy.
	if sess.IP != "198.51.100.7" {
		t.Errorf("session ip = %q, want 198.51.100.7", sess.IP)
	}
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	if ip := env.server.clientIP(r); ip != "203.0.113.9" {
		t.Errorf("untrusted proxy trusted the header: %q", ip)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if ip := env.server.clientIP(r); ip != "198.51.100.7" {
		t.Errorf("trusted proxy: %q", ip)
	}
}
