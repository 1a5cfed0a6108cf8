package handlers

import (
	"errors"
	"net/http"
	"strings"

	"archidoc/config"
	"archidoc/core/auth"
	"archidoc/core/utils"
)

type AuthHandler struct {
	cfg      *config.AppConfig
	sessions *auth.SessionManager
	monitor  *auth.IdleMonitor
	logger   *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, sessions *auth.SessionManager, monitor *auth.IdleMonitor, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, sessions: sessions, monitor: monitor, logger: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred credentials
	if !readJSON(w, r, &cred) {
		return
	}
	cred.Username = strings.ToLower(strings.TrimSpace(cred.Username))
	if err := utils.ValidateUsername(cred.Username); err != nil {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}
	sess, user, err := h.sessions.Login(r.Context(), cred.Username, cred.Password, clientAddr(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrBadCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrUserInactive):
			writeError(w, http.StatusForbidden, "account is inactive")
		default:
			h.logger.Errorf("AUTH login %s: %v", cred.Username, err)
			writeError(w, http.StatusInternalServerError, "server error")
		}
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	// The CSRF cookie is intentionally readable: the front end echoes it in
	// the X-CSRF-Token header on every mutation.
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	if h.monitor != nil {
		h.monitor.Touch(sess.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"csrf_token": sess.CSRFToken,
		"expires_at": sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFrom(r.Context())
	if sess != nil {
		if err := h.sessions.Logout(r.Context(), sess.ID); err != nil {
			h.logger.Errorf("AUTH logout session=%s: %v", sess.ID, err)
		}
		if h.monitor != nil {
			h.monitor.Forget(sess.ID)
		}
	}
	clearCookie(w, SessionCookieName, true)
	clearCookie(w, CSRFCookieName, false)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.ProfileFrom(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// SessionState is the heartbeat the inactivity banner polls. It reports
// the idle state without itself counting as activity.
func (h *AuthHandler) SessionState(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFrom(r.Context())
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	state := auth.IdleActive
	if h.monitor != nil {
		state = h.monitor.State(sess.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      state,
		"expires_at": sess.ExpiresAt,
	})
}

// ExtendSession is called when the user confirms the inactivity warning;
// it resets the idle clock and the sliding expiry.
func (h *AuthHandler) ExtendSession(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFrom(r.Context())
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.sessions.Refresh(r.Context(), sess.ID); err != nil {
		h.logger.Errorf("AUTH extend session=%s: %v", sess.ID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if h.monitor != nil {
		h.monitor.Touch(sess.ID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": auth.IdleActive})
}

func clearCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: httpOnly,
		MaxAge:   -1,
	})
}

// clientAddr prefers the proxy-resolved address the middleware put in the
// context; raw RemoteAddr is only the fallback for direct connections.
func clientAddr(r *http.Request) string {
	if ip := auth.ClientIPFrom(r.Context()); ip != "" {
		return ip
	}
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		addr = addr[:i]
	}
	return strings.Trim(addr, "[]")
}
