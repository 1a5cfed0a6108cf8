package store

import (
	"context"
	"database/sql"
	"time"
)

// HistoryEntry is the append-only audit trail. DocumentID is nil for
// activity that is not tied to a single document (logins, admin actions).
// Entries are never updated or deleted by normal flows; only the janitor
// trims them past retention.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	DocumentID  *int64    `json:"document_id,omitempty"`
	UserID      int64     `json:"user_id"`
	ActionType  string    `json:"action_type"`
	Details     string    `json:"details"`
	PerformedAt time.Time `json:"performed_at"`
}

const (
	ActionView   = "view"
	ActionUpload = "upload"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionAdmin  = "admin"
)

type HistoryStore interface {
	Append(ctx context.Context, e *HistoryEntry) error
	ListForDocument(ctx context.Context, documentID int64) ([]HistoryEntry, error)
	ListRecent(ctx context.Context, limit int) ([]HistoryEntry, error)
	TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type historyStore struct {
	db *DB
}

func NewHistoryStore(db *DB) HistoryStore {
	return &historyStore{db: db}
}

func (s *historyStore) Append(ctx context.Context, e *HistoryEntry) error {
	if e.PerformedAt.IsZero() {
		e.PerformedAt = time.Now().UTC()
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO document_history(document_id, user_id, action_type, details, performed_at)
		VALUES(?,?,?,?,?) RETURNING id`,
		nullableID(e.DocumentID), e.UserID, e.ActionType, e.Details, e.PerformedAt).Scan(&e.ID)
}

func (s *historyStore) ListForDocument(ctx context.Context, documentID int64) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, user_id, action_type, details, performed_at
		FROM document_history WHERE document_id=? ORDER BY performed_at DESC, id DESC`, documentID)
	if err != nil {
		return nil, err
	}
	return collectHistory(rows)
}

func (s *historyStore) ListRecent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, user_id, action_type, details, performed_at
		FROM document_history ORDER BY performed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectHistory(rows)
}

func (s *historyStore) TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_history WHERE performed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func collectHistory(rows *sql.Rows) ([]HistoryEntry, error) {
	defer rows.Close()
	var res []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var docID sql.NullInt64
		if err := rows.Scan(&e.ID, &docID, &e.UserID, &e.ActionType, &e.Details, &e.PerformedAt); err != nil {
			return nil, err
		}
		if docID.Valid {
			e.DocumentID = &docID.Int64
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
