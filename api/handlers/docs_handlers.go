package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/storage"
	"archidoc/core/store"
	"archidoc/core/utils"
)

type DocsHandler struct {
	svc     *docs.Service
	access  store.AccessStore
	history store.HistoryStore
	objects storage.ObjectStore
	logger  *utils.Logger
}

func NewDocsHandler(svc *docs.Service, access store.AccessStore, history store.HistoryStore, objects storage.ObjectStore, logger *utils.Logger) *DocsHandler {
	return &DocsHandler{svc: svc, access: access, history: history, objects: objects, logger: logger}
}

// List returns the documents visible to the caller, filtered and sorted
// per query parameters: q, category, sort.
func (h *DocsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.ProfileFrom(r.Context())
	visible, err := h.svc.ListVisible(r.Context(), user)
	if err != nil {
		h.logger.Errorf("DOCS list user=%s: %v", userName(user), err)
		writeDomainError(w, err)
		return
	}
	opts := parseFilterOptions(r)
	items := docs.FilterAndSort(visible, opts)
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (h *DocsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := h.svc.Get(r.Context(), id, auth.ProfileFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	var upd store.DocumentUpdate
	if !readJSON(w, r, &upd) {
		return
	}
	doc, err := h.svc.Update(r.Context(), id, &upd, auth.ProfileFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	if err := h.svc.Delete(r.Context(), id, auth.ProfileFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Download resolves the stored object URL after the same visibility check
// as Get, so a guessable id never leaks a file.
func (h *DocsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := h.svc.Get(r.Context(), id, auth.ProfileFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":               h.objects.PublicURL(doc.FilePath),
		"original_filename": doc.OriginalFilename,
		"file_type":         doc.FileType,
		"file_size":         doc.FileSize,
	})
}

func (h *DocsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	// Visibility gate first; history leaks titles and actors otherwise.
	if _, err := h.svc.Get(r.Context(), id, auth.ProfileFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := h.history.ListForDocument(r.Context(), id)
	if err != nil {
		h.logger.Errorf("DOCS history id=%d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

type grantRequest struct {
	UserID      int64 `json:"user_id"`
	CanView     bool  `json:"can_view"`
	CanDownload bool  `json:"can_download"`
}

// GrantAccess adds a nominal access entry. The caller must be able to edit
// the document; the route also carries the share permission.
func (h *DocsHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	var req grantRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	acting := auth.ProfileFrom(r.Context())
	doc, err := h.svc.Get(r.Context(), id, acting)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !docs.CanEdit(acting.Role, acting.Department, doc.IssuingDepartment) {
		writeError(w, http.StatusForbidden, "cross-department access denied")
		return
	}
	if err := h.access.Grant(r.Context(), &store.AccessEntry{
		DocumentID:  id,
		UserID:      req.UserID,
		CanView:     req.CanView,
		CanDownload: req.CanDownload,
		GrantedBy:   acting.ID,
	}); err != nil {
		h.logger.Errorf("DOCS grant doc=%d user=%d: %v", id, req.UserID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (h *DocsHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	userID, ok := urlParamID(r, "user_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	acting := auth.ProfileFrom(r.Context())
	doc, err := h.svc.Get(r.Context(), id, acting)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !docs.CanEdit(acting.Role, acting.Department, doc.IssuingDepartment) {
		writeError(w, http.StatusForbidden, "cross-department access denied")
		return
	}
	if err := h.access.Revoke(r.Context(), id, userID); err != nil {
		h.logger.Errorf("DOCS revoke doc=%d user=%d: %v", id, userID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *DocsHandler) ListAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	if _, err := h.svc.Get(r.Context(), id, auth.ProfileFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := h.access.ListForDocument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func parseFilterOptions(r *http.Request) docs.FilterOptions {
	q := r.URL.Query()
	opts := docs.FilterOptions{
		Search:  q.Get("q"),
		SortKey: q.Get("sort"),
	}
	rawCat := strings.TrimSpace(q.Get("category"))
	if rawCat != "" && rawCat != "all" {
		if id, err := strconv.ParseInt(rawCat, 10, 64); err == nil {
			opts.CategoryID = id
		}
	}
	return opts
}

func userName(u *store.UserProfile) string {
	if u == nil {
		return "-"
	}
	return u.Username
}
