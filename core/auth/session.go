package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"

	"archidoc/config"
	"archidoc/core/store"
	"archidoc/core/utils"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrUserInactive   = errors.New("account is inactive")
	ErrNoSession      = errors.New("session not found")
)

// SessionManager owns the server-side session lifecycle. Sessions are
// opaque uuid tokens stored in the database; the cookie carries only the id.
type SessionManager struct {
	sessions store.SessionStore
	users    store.UsersStore
	history  store.HistoryStore
	cfg      *config.AppConfig
	logger   *utils.Logger
}

func NewSessionManager(sessions store.SessionStore, users store.UsersStore, history store.HistoryStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, users: users, history: history, cfg: cfg, logger: logger}
}

// Login verifies the credentials and opens a session for the user. The
// error is the same for unknown users and wrong passwords.
func (m *SessionManager) Login(ctx context.Context, username, password, ip, userAgent string) (*store.SessionRecord, *store.UserProfile, error) {
	user, err := m.users.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		// Burn a comparison anyway so timing does not reveal existence.
		VerifyPassword("$2a$10$0000000000000000000000000000000000000000000000000000x", password, m.pepper())
		return nil, nil, ErrBadCredentials
	}
	if !user.Active() {
		return nil, nil, ErrUserInactive
	}
	if !VerifyPassword(user.PasswordHash, password, m.pepper()) {
		return nil, nil, ErrBadCredentials
	}
	sess, err := m.Create(ctx, user, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}
	now := utils.NowUTC()
	if err := m.users.TouchLastActive(ctx, user.ID, now); err != nil {
		m.logger.Errorf("AUTH touch last_active user=%d: %v", user.ID, err)
	}
	m.record(ctx, user.ID, store.ActionLogin, "ip="+ip)
	return sess, user, nil
}

func (m *SessionManager) Create(ctx context.Context, user *store.UserProfile, ip, userAgent string) (*store.SessionRecord, error) {
	id := uuid.Must(uuid.NewV4()).String()
	csrf, err := utils.RandString(32)
	if err != nil {
		return nil, err
	}
	now := utils.NowUTC()
	sess := &store.SessionRecord{
		ID:         id,
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		Department: user.Department,
		CSRFToken:  csrf,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *SessionManager) Get(ctx context.Context, sessID string) (*store.SessionRecord, error) {
	if sessID == "" {
		return nil, nil
	}
	return m.sessions.GetSession(ctx, sessID)
}

// Refresh extends the sliding expiry after authenticated activity.
func (m *SessionManager) Refresh(ctx context.Context, sessID string) error {
	return m.sessions.UpdateActivity(ctx, sessID, utils.NowUTC(), m.cfg.EffectiveSessionTTL())
}

// Rotate replaces the session id, e.g. after a privilege change.
func (m *SessionManager) Rotate(ctx context.Context, sessID string) (*store.SessionRecord, error) {
	old, err := m.sessions.GetSession(ctx, sessID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrNoSession
	}
	if err := m.sessions.DeleteSession(ctx, sessID); err != nil {
		m.logger.Errorf("AUTH rotate: delete old session: %v", err)
	}
	return m.Create(ctx, &store.UserProfile{
		ID:         old.UserID,
		Username:   old.Username,
		Role:       old.Role,
		Department: old.Department,
	}, old.IP, old.UserAgent)
}

// Logout ends the session. A missing session is not an error.
func (m *SessionManager) Logout(ctx context.Context, sessID string) error {
	sess, err := m.sessions.GetSession(ctx, sessID)
	if err != nil {
		return err
	}
	if sess != nil {
		m.record(ctx, sess.UserID, store.ActionLogout, "")
	}
	return m.sessions.DeleteSession(ctx, sessID)
}

// RevokeUser drops every session of one user, e.g. on deactivation.
func (m *SessionManager) RevokeUser(ctx context.Context, userID int64) error {
	return m.sessions.DeleteForUser(ctx, userID)
}

// Profile resolves the session back to the live user row so permission
// checks always run against current role and department, not the values
// frozen into the session.
func (m *SessionManager) Profile(ctx context.Context, sess *store.SessionRecord) (*store.UserProfile, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	user, err := m.users.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (m *SessionManager) pepper() string {
	if m.cfg == nil {
		return ""
	}
	return m.cfg.Pepper
}

func (m *SessionManager) record(ctx context.Context, userID int64, action, details string) {
	if m.history == nil {
		return
	}
	if err := m.history.Append(ctx, &store.HistoryEntry{UserID: userID, ActionType: action, Details: details}); err != nil {
		m.logger.Errorf("AUTH history append action=%s: %v", action, err)
	}
}
