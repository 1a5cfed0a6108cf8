package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"archidoc/config"
	"archidoc/core/auth"
	"archidoc/core/docs"
	"archidoc/core/utils"
)

type UploadHandler struct {
	uploader *docs.Uploader
	cfg      config.UploadConfig
	logger   *utils.Logger
}

func NewUploadHandler(uploader *docs.Uploader, cfg config.UploadConfig, logger *utils.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, cfg: cfg, logger: logger}
}

// Upload accepts one multipart submission carrying shared metadata plus up
// to the configured number of files and reports one result per file.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBody := h.cfg.MaxFileBytes*int64(h.cfg.MaxBatchFiles) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	fields := parseBatchFields(r)
	headers := r.MultipartForm.File["files"]
	files := make([]docs.BatchFile, 0, len(headers))
	var open []interface{ Close() error }
	defer func() {
		for _, f := range open {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file "+fh.Filename)
			return
		}
		open = append(open, f)
		files = append(files, docs.BatchFile{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}

	results, err := h.uploader.UploadMultiple(r.Context(), fields, files, auth.ProfileFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	succeeded, failed := docs.Summarize(results)
	status := http.StatusCreated
	if failed > 0 {
		// Partial success still reports per-file detail; the client must
		// not read the batch as fully successful.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]any{
		"results":   results,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

func parseBatchFields(r *http.Request) docs.BatchFields {
	get := func(key string) string { return strings.TrimSpace(r.FormValue(key)) }
	fields := docs.BatchFields{
		Title:                get("title"),
		ReferenceNumber:      get("reference_number"),
		DocumentType:         get("document_type"),
		IssuingDepartment:    get("issuing_department"),
		Description:          get("description"),
		BudgetYear:           get("budget_year"),
		BudgetProgram:        get("budget_program"),
		MarketType:           get("market_type"),
		ConfidentialityLevel: get("confidentiality_level"),
		ArchiveZone:          get("archive_zone"),
		ArchiveRoom:          get("archive_room"),
		ArchiveCabinet:       get("archive_cabinet"),
		ArchiveShelf:         get("archive_shelf"),
		ArchiveBox:           get("archive_box"),
		ArchiveFolder:        get("archive_folder"),
		ArchiveCode:          get("archive_code"),
	}
	if raw := get("category_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fields.CategoryID = id
		}
	}
	if raw := get("document_date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			fields.DocumentDate = &t
		}
	}
	return fields
}
