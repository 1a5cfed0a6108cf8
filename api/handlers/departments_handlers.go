package handlers

import (
	"net/http"
	"strings"

	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/store"
	"archidoc/core/utils"
)

type DepartmentsHandler struct {
	departments store.DepartmentsStore
	logger      *utils.Logger
}

func NewDepartmentsHandler(departments store.DepartmentsStore, logger *utils.Logger) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments, logger: logger}
}

func (h *DepartmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	// Only the admin sees deactivated departments.
	includeInactive := false
	if user := auth.ProfileFrom(r.Context()); user != nil && user.Role == docs.RoleAdmin {
		includeInactive = r.URL.Query().Get("include_inactive") == "true"
	}
	items, err := h.departments.List(r.Context(), includeInactive)
	if err != nil {
		h.logger.Errorf("DEPT list: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type departmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

func (h *DepartmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	existing, err := h.departments.GetByName(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "department already exists")
		return
	}
	dept := &store.Department{Name: req.Name, Description: req.Description, IsActive: true}
	if _, err := h.departments.Create(r.Context(), dept); err != nil {
		h.logger.Errorf("DEPT create %s: %v", req.Name, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusCreated, dept)
}

// Update changes description and active flag. The name is immutable:
// users and documents reference departments by name.
func (h *DepartmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid department id")
		return
	}
	var req departmentRequest
	if !readJSON(w, r, &req) {
		return
	}
	dept, err := h.departments.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if dept == nil {
		writeError(w, http.StatusNotFound, "department not found")
		return
	}
	if req.Description != dept.Description {
		if err := h.departments.UpdateDescription(r.Context(), id, req.Description); err != nil {
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		dept.Description = req.Description
	}
	if req.IsActive != nil && *req.IsActive != dept.IsActive {
		if err := h.departments.SetActive(r.Context(), id, *req.IsActive); err != nil {
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		dept.IsActive = *req.IsActive
	}
	writeJSON(w, http.StatusOK, dept)
}

func (h *DepartmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid department id")
		return
	}
	if err := h.departments.Delete(r.Context(), id); err != nil {
		h.logger.Errorf("DEPT delete id=%d: %v", id, err)
		writeError(w, http.StatusConflict, "department is still referenced")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
