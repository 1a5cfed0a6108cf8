package handlers

import (
	"net/http"
	"strings"

	"archidoc/config"
	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/rbac"
	"archidoc/core/store"
	"archidoc/core/utils"
)

// UsersHandler is the privileged user-management endpoint. It is a single
// action-dispatching call, and it re-validates the caller against the live
// user row on every request instead of trusting the session role: a
// demoted admin loses this endpoint immediately.
type UsersHandler struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	sessions *auth.SessionManager
	history  store.HistoryStore
	logger   *utils.Logger
}

func NewUsersHandler(cfg *config.AppConfig, users store.UsersStore, sessions *auth.SessionManager, history store.HistoryStore, logger *utils.Logger) *UsersHandler {
	return &UsersHandler{cfg: cfg, users: users, sessions: sessions, history: history, logger: logger}
}

type userActionRequest struct {
	Action string `json:"action"`

	ID         int64  `json:"id,omitempty"`
	Username   string `json:"username,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Password   string `json:"password,omitempty"`
}

func (h *UsersHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	acting, ok := h.requireLiveAdmin(w, r)
	if !ok {
		return
	}
	var req userActionRequest
	if !readJSON(w, r, &req) {
		return
	}
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "list":
		h.list(w, r)
	case "create":
		h.create(w, r, acting, &req)
	case "update":
		h.update(w, r, acting, &req)
	case "delete":
		h.delete(w, r, acting, &req)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// requireLiveAdmin fetches the caller's current row and demands the admin
// role. The session's frozen role is deliberately not trusted here.
func (h *UsersHandler) requireLiveAdmin(w http.ResponseWriter, r *http.Request) (*store.UserProfile, bool) {
	sess := auth.SessionFrom(r.Context())
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	acting, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Errorf("ADMIN users: profile lookup user=%d: %v", sess.UserID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return nil, false
	}
	if acting == nil || !acting.Active() || acting.Role != docs.RoleAdmin {
		h.logger.Printf("ADMIN users: denied user=%d", sess.UserID)
		writeError(w, http.StatusForbidden, "admin role required")
		return nil, false
	}
	return acting, true
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *UsersHandler) create(w http.ResponseWriter, r *http.Request, acting *store.UserProfile, req *userActionRequest) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := utils.ValidateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}
	if !rbac.KnownRole(req.Role) {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	if docs.IsDepartmentScoped(req.Role) && strings.TrimSpace(req.Department) == "" {
		writeError(w, http.StatusBadRequest, "department required for scoped roles")
		return
	}
	hash, err := auth.HashPassword(req.Password, h.cfg.Pepper)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := &store.UserProfile{
		Username:     req.Username,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Department:   strings.TrimSpace(req.Department),
		Status:       store.UserStatusActive,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
	}
	if _, err := h.users.Create(r.Context(), user); err != nil {
		h.logger.Errorf("ADMIN users create %s: %v", req.Username, err)
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	h.record(r, acting, "user_create username="+user.Username+" role="+user.Role)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request, acting *store.UserProfile, req *userActionRequest) {
	if req.ID <= 0 {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	user, err := h.users.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if req.Role != "" {
		if !rbac.KnownRole(req.Role) {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		if user.ID == acting.ID && req.Role != docs.RoleAdmin {
			writeError(w, http.StatusBadRequest, "cannot demote yourself")
			return
		}
		user.Role = req.Role
	}
	if req.FullName != "" {
		user.FullName = strings.TrimSpace(req.FullName)
	}
	if req.Department != "" {
		user.Department = strings.TrimSpace(req.Department)
	}
	if req.Phone != "" {
		user.Phone = strings.TrimSpace(req.Phone)
	}
	if req.Status != "" {
		if req.Status != store.UserStatusActive && req.Status != store.UserStatusInactive {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		user.Status = req.Status
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password, h.cfg.Pepper)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user.PasswordHash = hash
	}
	if err := h.users.Update(r.Context(), user); err != nil {
		h.logger.Errorf("ADMIN users update id=%d: %v", req.ID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	// Deactivation and password change both kill existing sessions.
	if req.Status == store.UserStatusInactive || req.Password != "" {
		if err := h.sessions.RevokeUser(r.Context(), user.ID); err != nil {
			h.logger.Errorf("ADMIN users revoke sessions id=%d: %v", user.ID, err)
		}
	}
	h.record(r, acting, "user_update username="+user.Username)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UsersHandler) delete(w http.ResponseWriter, r *http.Request, acting *store.UserProfile, req *userActionRequest) {
	if req.ID <= 0 {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	if req.ID == acting.ID {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}
	user, err := h.users.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.sessions.RevokeUser(r.Context(), user.ID); err != nil {
		h.logger.Errorf("ADMIN users revoke sessions id=%d: %v", user.ID, err)
	}
	if err := h.users.Delete(r.Context(), user.ID); err != nil {
		h.logger.Errorf("ADMIN users delete id=%d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	h.record(r, acting, "user_delete username="+user.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *UsersHandler) record(r *http.Request, acting *store.UserProfile, details string) {
	if h.history == nil {
		return
	}
	err := h.history.Append(r.Context(), &store.HistoryEntry{
		UserID:     acting.ID,
		ActionType: store.ActionAdmin,
		Details:    details,
	})
	if err != nil {
		h.logger.Errorf("ADMIN history append: %v", err)
	}
}
