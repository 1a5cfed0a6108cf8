package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// AccessEntry is a per-document nominal grant layered on top of department
// scoping: it lets a named user view (and optionally download) a single
// document outside their department.
type AccessEntry struct {
	DocumentID  int64     `json:"document_id"`
	UserID      int64     `json:"user_id"`
	CanView     bool      `json:"can_view"`
	CanDownload bool      `json:"can_download"`
	GrantedBy   int64     `json:"granted_by"`
	GrantedAt   time.Time `json:"granted_at"`
}

type AccessStore interface {
	Grant(ctx context.Context, e *AccessEntry) error
	Revoke(ctx context.Context, documentID, userID int64) error
	Get(ctx context.Context, documentID, userID int64) (*AccessEntry, error)
	ListForDocument(ctx context.Context, documentID int64) ([]AccessEntry, error)
	ListForUser(ctx context.Context, userID int64) ([]AccessEntry, error)
}

type accessStore struct {
	db *DB
}

func NewAccessStore(db *DB) AccessStore {
	return &accessStore{db: db}
}

func (s *accessStore) Grant(ctx context.Context, e *AccessEntry) error {
	if e.GrantedAt.IsZero() {
		e.GrantedAt = time.Now().UTC()
	}
	// Re-granting replaces the previous entry.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_access(document_id, user_id, can_view, can_download, granted_by, granted_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT (document_id, user_id)
		DO UPDATE SET can_view=excluded.can_view, can_download=excluded.can_download, granted_by=excluded.granted_by, granted_at=excluded.granted_at`,
		e.DocumentID, e.UserID, boolToInt(e.CanView), boolToInt(e.CanDownload), e.GrantedBy, e.GrantedAt)
	return err
}

func (s *accessStore) Revoke(ctx context.Context, documentID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_access WHERE document_id=? AND user_id=?`, documentID, userID)
	return err
}

func (s *accessStore) Get(ctx context.Context, documentID, userID int64) (*AccessEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, user_id, can_view, can_download, granted_by, granted_at
		FROM document_access WHERE document_id=? AND user_id=?`, documentID, userID)
	var e AccessEntry
	var view, download int
	if err := row.Scan(&e.DocumentID, &e.UserID, &view, &download, &e.GrantedBy, &e.GrantedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.CanView = view != 0
	e.CanDownload = download != 0
	return &e, nil
}

func (s *accessStore) ListForDocument(ctx context.Context, documentID int64) ([]AccessEntry, error) {
	return s.list(ctx, `document_id=?`, documentID)
}

func (s *accessStore) ListForUser(ctx context.Context, userID int64) ([]AccessEntry, error) {
	return s.list(ctx, `user_id=?`, userID)
}

func (s *accessStore) list(ctx context.Context, where string, arg any) ([]AccessEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, user_id, can_view, can_download, granted_by, granted_at
		FROM document_access WHERE `+where+` ORDER BY granted_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AccessEntry
	for rows.Next() {
		var e AccessEntry
		var view, download int
		if err := rows.Scan(&e.DocumentID, &e.UserID, &view, &download, &e.GrantedBy, &e.GrantedAt); err != nil {
			return nil, err
		}
		e.CanView = view != 0
		e.CanDownload = download != 0
		res = append(res, e)
	}
	return res, rows.Err()
}
