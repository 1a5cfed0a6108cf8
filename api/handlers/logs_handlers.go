package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/store"
	"archidoc/core/utils"
)

type LogsHandler struct {
	history   store.HistoryStore
	documents store.DocumentsStore
	logger    *utils.Logger
}

func NewLogsHandler(history store.HistoryStore, documents store.DocumentsStore, logger *utils.Logger) *LogsHandler {
	return &LogsHandler{history: history, documents: documents, logger: logger}
}

// List returns recent audit entries. Scoped roles only see activity on
// documents of their own department plus their own account events.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	acting := auth.ProfileFrom(r.Context())
	if acting == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Errorf("LOGS list: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if acting.Role != docs.RoleAdmin {
		entries, err = h.scopeEntries(r, acting, entries)
		if err != nil {
			h.logger.Errorf("LOGS scope: %v", err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

// Export streams the same scoped feed as CSV.
func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	acting := auth.ProfileFrom(r.Context())
	if acting == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.history.ListRecent(r.Context(), 500)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if acting.Role != docs.RoleAdmin {
		entries, err = h.scopeEntries(r, acting, entries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
	}
	filename := "journal_" + time.Now().UTC().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"time", "user_id", "document_id", "action", "details"})
	for i := range entries {
		docID := ""
		if entries[i].DocumentID != nil {
			docID = strconv.FormatInt(*entries[i].DocumentID, 10)
		}
		_ = writer.Write([]string{
			entries[i].PerformedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(entries[i].UserID, 10),
			docID,
			entries[i].ActionType,
			entries[i].Details,
		})
	}
	writer.Flush()
}

func (h *LogsHandler) scopeEntries(r *http.Request, acting *store.UserProfile, entries []store.HistoryEntry) ([]store.HistoryEntry, error) {
	deptDocs := map[int64]bool{}
	scoped := make([]store.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.DocumentID == nil {
			if e.UserID == acting.ID {
				scoped = append(scoped, e)
			}
			continue
		}
		inDept, seen := deptDocs[*e.DocumentID]
		if !seen {
			d, err := h.documents.Get(r.Context(), *e.DocumentID)
			if err != nil {
				return nil, err
			}
			inDept = d != nil && d.IssuingDepartment == acting.Department
			deptDocs[*e.DocumentID] = inDept
		}
		if inDept {
			scoped = append(scoped, e)
		}
	}
	return scoped, nil
}

// Stats is the dashboard counter feed: documents per department.
func (h *LogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	acting := auth.ProfileFrom(r.Context())
	if acting == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	counts, err := h.documents.CountByDepartment(r.Context())
	if err != nil {
		h.logger.Errorf("STATS: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if acting.Role != docs.RoleAdmin {
		counts = map[string]int64{acting.Department: counts[acting.Department]}
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"by_department": counts,
		"total":         total,
	})
}
