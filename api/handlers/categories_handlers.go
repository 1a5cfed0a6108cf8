package handlers

import (
	"net/http"
	"strings"

	"archidoc/core/store"
	"archidoc/core/utils"
)

type CategoriesHandler struct {
	categories store.CategoriesStore
	logger     *utils.Logger
}

func NewCategoriesHandler(categories store.CategoriesStore, logger *utils.Logger) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, logger: logger}
}

func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.categories.List(r.Context())
	if err != nil {
		h.logger.Errorf("CAT list: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	cat := &store.Category{Name: req.Name, Description: req.Description}
	if _, err := h.categories.Create(r.Context(), cat); err != nil {
		h.logger.Errorf("CAT create %s: %v", req.Name, err)
		writeError(w, http.StatusConflict, "category already exists")
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if !readJSON(w, r, &req) {
		return
	}
	cat, err := h.categories.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if cat == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		cat.Name = name
	}
	cat.Description = req.Description
	if err := h.categories.Update(r.Context(), cat); err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		h.logger.Errorf("CAT delete id=%d: %v", id, err)
		writeError(w, http.StatusConflict, "category is still referenced")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
