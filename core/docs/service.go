package docs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"archidoc/core/storage"
	"archidoc/core/store"
	"archidoc/core/utils"
)

// Service is the secure document mutation layer. Every mutation re-runs the
// permission model against the acting profile before touching storage; the
// database policy remains the outer trust boundary.
type Service struct {
	documents store.DocumentsStore
	access    store.AccessStore
	history   store.HistoryStore
	objects   storage.ObjectStore
	logger    *utils.Logger
}

func NewService(documents store.DocumentsStore, access store.AccessStore, history store.HistoryStore, objects storage.ObjectStore, logger *utils.Logger) *Service {
	return &Service{documents: documents, access: access, history: history, objects: objects, logger: logger}
}

// CreateRequest carries the metadata plus the file content for one document.
// FilePath must already be collision-free (the upload orchestrator prefixes
// it); Content is consumed exactly once.
type CreateRequest struct {
	Document    store.Document
	Content     io.Reader
	Size        int64
	ContentType string
}

// Create uploads the object first, then inserts the metadata row. On a
// metadata failure the uploaded object is removed again, so the caller
// never observes a partial create. If that compensating removal itself
// fails the orphaned object is logged and left for the janitor.
func (s *Service) Create(ctx context.Context, req CreateRequest, acting *store.UserProfile) (*store.Document, error) {
	if acting == nil || !CanCreate(acting.Role) {
		return nil, ErrPermissionDenied
	}
	d := req.Document
	d.IssuingDepartment = ResolveEffectiveDepartment(acting.Role, strings.TrimSpace(d.IssuingDepartment), acting.Department)
	if d.IssuingDepartment == "" {
		return nil, validationErr("issuing_department", "required")
	}
	if err := validateDocument(&d); err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.FilePath) == "" {
		return nil, validationErr("file_path", "required")
	}
	d.UploadedBy = acting.ID
	d.UploadDate = time.Now().UTC()

	if err := s.objects.Upload(ctx, d.FilePath, req.Content, req.Size, req.ContentType); err != nil {
		return nil, &StorageError{Op: "upload", Path: d.FilePath, Err: err}
	}
	if _, err := s.documents.Create(ctx, &d); err != nil {
		// Compensate: the object must not outlive the failed insert.
		if rmErr := s.objects.Remove(ctx, d.FilePath); rmErr != nil {
			s.logger.Errorf("DOC create rollback failed, orphan object path=%s: %v", d.FilePath, rmErr)
		}
		return nil, &PersistenceError{Op: "insert", Err: err}
	}
	s.audit(ctx, &d.ID, acting.ID, store.ActionUpload, fmt.Sprintf("title=%q dept=%s", d.Title, d.IssuingDepartment))
	return &d, nil
}

// Update fetches the current row to learn its issuing department, checks
// the edit rule against it, and strips issuing_department from the patch
// for non-admin roles before writing.
func (s *Service) Update(ctx context.Context, id int64, upd *store.DocumentUpdate, acting *store.UserProfile) (*store.Document, error) {
	if acting == nil || upd == nil {
		return nil, ErrPermissionDenied
	}
	current, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	if current == nil {
		return nil, ErrNotFound
	}
	if !CanEdit(acting.Role, acting.Department, current.IssuingDepartment) {
		if IsDepartmentScoped(acting.Role) {
			return nil, ErrCrossDepartment
		}
		return nil, ErrPermissionDenied
	}
	if acting.Role != RoleAdmin {
		upd.IssuingDepartment = nil
	}
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.documents.Update(ctx, id, upd, acting.ID, now); err != nil {
		return nil, &PersistenceError{Op: "update", Err: err}
	}
	s.audit(ctx, &id, acting.ID, store.ActionUpdate, "")
	updated, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return updated, nil
}

// Delete removes the metadata row, then best-effort removes the stored
// object. The row is the authoritative state: once it is gone the delete
// has succeeded, and an object removal failure is only logged.
func (s *Service) Delete(ctx context.Context, id int64, acting *store.UserProfile) error {
	if acting == nil {
		return ErrPermissionDenied
	}
	current, err := s.documents.Get(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "get", Err: err}
	}
	if current == nil {
		return ErrNotFound
	}
	if !CanDelete(acting.Role, acting.Department, current.IssuingDepartment) {
		if IsDepartmentScoped(acting.Role) {
			return ErrCrossDepartment
		}
		return ErrPermissionDenied
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	if current.FilePath != "" {
		if err := s.objects.Remove(ctx, current.FilePath); err != nil {
			s.logger.Errorf("DOC delete: object removal failed path=%s: %v", current.FilePath, err)
		}
	}
	s.audit(ctx, &id, acting.ID, store.ActionDelete, fmt.Sprintf("title=%q", current.Title))
	return nil
}

// Get returns a document the acting profile may view: department scope or
// a nominal access grant. Successful views are logged fire-and-forget.
func (s *Service) Get(ctx context.Context, id int64, acting *store.UserProfile) (*store.Document, error) {
	if acting == nil {
		return nil, ErrPermissionDenied
	}
	d, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	if d == nil {
		return nil, ErrNotFound
	}
	if !CanViewDepartmentScoped(acting.Role, acting.Department, d.IssuingDepartment) {
		entry, err := s.access.Get(ctx, id, acting.ID)
		if err != nil || entry == nil || !entry.CanView {
			return nil, ErrCrossDepartment
		}
	}
	s.LogView(ctx, id, acting)
	return d, nil
}

// LogView appends a view entry. Failures are swallowed: telemetry must
// never block or fail the read it describes.
func (s *Service) LogView(ctx context.Context, id int64, acting *store.UserProfile) {
	if acting == nil {
		return
	}
	s.audit(ctx, &id, acting.ID, store.ActionView, "")
}

func (s *Service) audit(ctx context.Context, docID *int64, userID int64, action, details string) {
	if s.history == nil {
		return
	}
	err := s.history.Append(ctx, &store.HistoryEntry{
		DocumentID: docID,
		UserID:     userID,
		ActionType: action,
		Details:    details,
	})
	if err != nil {
		s.logger.Errorf("AUDIT append failed action=%s: %v", action, err)
	}
}

func validateDocument(d *store.Document) error {
	if strings.TrimSpace(d.Title) == "" {
		return validationErr("title", "required")
	}
	if d.CategoryID <= 0 {
		return validationErr("category_id", "required")
	}
	if strings.TrimSpace(d.DocumentType) == "" {
		return validationErr("document_type", "required")
	}
	if !store.ValidMarketType(d.MarketType) {
		return validationErr("market_type", "unknown value")
	}
	if !store.ValidConfidentiality(d.ConfidentialityLevel) {
		return validationErr("confidentiality_level", "unknown value")
	}
	if d.Status != "" && d.Status != store.DocStatusActive && d.Status != store.DocStatusArchived {
		return validationErr("status", "unknown value")
	}
	return nil
}

func validateUpdate(upd *store.DocumentUpdate) error {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return validationErr("title", "required")
	}
	if upd.CategoryID != nil && *upd.CategoryID <= 0 {
		return validationErr("category_id", "required")
	}
	if upd.DocumentType != nil && strings.TrimSpace(*upd.DocumentType) == "" {
		return validationErr("document_type", "required")
	}
	if upd.MarketType != nil && !store.ValidMarketType(*upd.MarketType) {
		return validationErr("market_type", "unknown value")
	}
	if upd.ConfidentialityLevel != nil && !store.ValidConfidentiality(*upd.ConfidentialityLevel) {
		return validationErr("confidentiality_level", "unknown value")
	}
	if upd.Status != nil && *upd.Status != store.DocStatusActive && *upd.Status != store.DocStatusArchived {
		return validationErr("status", "unknown value")
	}
	return nil
}
