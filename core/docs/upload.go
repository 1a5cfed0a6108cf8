package docs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"archidoc/config"
	"archidoc/core/store"
	"archidoc/core/utils"
)

// Per-file error kinds surfaced in batch results.
const (
	ErrKindValidation = "validation_error"
	ErrKindUpload     = "upload_error"
	ErrKindInsert     = "insert_error"
)

const objectPrefix = "documents"

// BatchFields is the shared metadata of one logical submission. When the
// batch has more than one file, Title and ReferenceNumber are suffixed per
// file so each becomes a distinct document row.
type BatchFields struct {
	Title                string
	ReferenceNumber      string
	DocumentDate         *time.Time
	DocumentType         string
	CategoryID           int64
	IssuingDepartment    string
	Description          string
	BudgetYear           string
	BudgetProgram        string
	MarketType           string
	ConfidentialityLevel string
	ArchiveZone          string
	ArchiveRoom          string
	ArchiveCabinet       string
	ArchiveShelf         string
	ArchiveBox           string
	ArchiveFolder        string
	ArchiveCode          string
}

type BatchFile struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// FileResult is one slot of the batch report, same order as the input.
type FileResult struct {
	Success    bool   `json:"success"`
	FileName   string `json:"file_name"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DocumentID int64  `json:"document_id,omitempty"`
}

// Uploader fans one submission out into N document creations, sequentially.
// Sequential on purpose: small batches, deterministic per-file rollback and
// result ordering.
type Uploader struct {
	svc    *Service
	cfg    config.UploadConfig
	logger *utils.Logger
	now    func() time.Time
}

func NewUploader(svc *Service, cfg config.UploadConfig, logger *utils.Logger) *Uploader {
	if cfg.MaxBatchFiles <= 0 {
		cfg.MaxBatchFiles = 5
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 20 << 20
	}
	if len(cfg.AllowedExts) == 0 {
		cfg.AllowedExts = []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "jpg", "jpeg", "png"}
	}
	return &Uploader{svc: svc, cfg: cfg, logger: logger, now: time.Now}
}

// UploadMultiple processes every file even when earlier ones fail and
// returns one result per input file, in order. Batch-level problems
// (no permission, too many files) fail the whole call instead.
func (u *Uploader) UploadMultiple(ctx context.Context, fields BatchFields, files []BatchFile, acting *store.UserProfile) ([]FileResult, error) {
	if acting == nil || !CanCreate(acting.Role) {
		return nil, ErrPermissionDenied
	}
	if len(files) == 0 {
		return nil, validationErr("files", "empty batch")
	}
	if len(files) > u.cfg.MaxBatchFiles {
		return nil, validationErr("files", fmt.Sprintf("at most %d files per batch", u.cfg.MaxBatchFiles))
	}

	batchStamp := u.now().UTC().UnixMilli()
	results := make([]FileResult, len(files))
	for i, f := range files {
		results[i].FileName = f.Name
		if reason := u.validateFile(f); reason != "" {
			results[i].Error = reason
			results[i].ErrorKind = ErrKindValidation
			continue
		}
		doc := u.buildDocument(fields, f, i, len(files), batchStamp)
		created, err := u.svc.Create(ctx, CreateRequest{
			Document:    doc,
			Content:     f.Content,
			Size:        f.Size,
			ContentType: f.ContentType,
		}, acting)
		if err != nil {
			results[i].Error = err.Error()
			results[i].ErrorKind = classifyCreateError(err)
			u.logger.Errorf("UPLOAD batch file=%s kind=%s: %v", f.Name, results[i].ErrorKind, err)
			continue
		}
		results[i].Success = true
		results[i].DocumentID = created.ID
	}
	return results, nil
}

func (u *Uploader) validateFile(f BatchFile) string {
	if strings.TrimSpace(f.Name) == "" {
		return "missing filename"
	}
	if f.Size <= 0 {
		return "empty file"
	}
	if f.Size > u.cfg.MaxFileBytes {
		return fmt.Sprintf("file exceeds %d MB limit", u.cfg.MaxFileBytes>>20)
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(f.Name), "."))
	for _, allowed := range u.cfg.AllowedExts {
		if ext == strings.ToLower(allowed) {
			return ""
		}
	}
	return fmt.Sprintf("file type %q not allowed", ext)
}

func (u *Uploader) buildDocument(fields BatchFields, f BatchFile, index, total int, batchStamp int64) store.Document {
	title := strings.TrimSpace(fields.Title)
	ref := strings.TrimSpace(fields.ReferenceNumber)
	if total > 1 {
		title = fmt.Sprintf("%s - %d", title, index+1)
		if ref != "" {
			ref = fmt.Sprintf("%s-%d", ref, index+1)
		}
	}
	sanitized := SanitizeFilename(f.Name)
	// Timestamp plus batch index keeps paths distinct even for twin names.
	filePath := fmt.Sprintf("%s/%d_%d_%s", objectPrefix, batchStamp, index, sanitized)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(f.Name), "."))
	return store.Document{
		Title:                title,
		ReferenceNumber:      ref,
		DocumentDate:         fields.DocumentDate,
		DocumentType:         fields.DocumentType,
		CategoryID:           fields.CategoryID,
		FilePath:             filePath,
		FileType:             ext,
		FileSize:             f.Size,
		OriginalFilename:     f.Name,
		IssuingDepartment:    fields.IssuingDepartment,
		Description:          fields.Description,
		BudgetYear:           fields.BudgetYear,
		BudgetProgram:        fields.BudgetProgram,
		MarketType:           fields.MarketType,
		ConfidentialityLevel: fields.ConfidentialityLevel,
		ArchiveZone:          fields.ArchiveZone,
		ArchiveRoom:          fields.ArchiveRoom,
		ArchiveCabinet:       fields.ArchiveCabinet,
		ArchiveShelf:         fields.ArchiveShelf,
		ArchiveBox:           fields.ArchiveBox,
		ArchiveFolder:        fields.ArchiveFolder,
		ArchiveCode:          fields.ArchiveCode,
	}
}

func classifyCreateError(err error) string {
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return ErrKindUpload
	}
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return ErrKindInsert
	}
	return ErrKindValidation
}

// Summarize counts successes and failures for the caller's report; a batch
// with any failure must never look fully successful.
func Summarize(results []FileResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
