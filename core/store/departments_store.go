package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Department rows are referenced by name from users and documents; renaming
// one silently orphans that linkage, so UpdateName is deliberately absent.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type DepartmentsStore interface {
	Create(ctx context.Context, d *Department) (int64, error)
	UpdateDescription(ctx context.Context, id int64, description string) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Department, error)
	GetByName(ctx context.Context, name string) (*Department, error)
	List(ctx context.Context, includeInactive bool) ([]Department, error)
}

type departmentsStore struct {
	db *DB
}

func NewDepartmentsStore(db *DB) DepartmentsStore {
	return &departmentsStore{db: db}
}

func (s *departmentsStore) Create(ctx context.Context, d *Department) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO departments(name, description, is_active, created_at) VALUES(?,?,?,?) RETURNING id`,
		strings.TrimSpace(d.Name), d.Description, boolToInt(d.IsActive), now).Scan(&id)
	if err != nil {
		return 0, err
	}
	d.ID = id
	d.CreatedAt = now
	return id, nil
}

func (s *departmentsStore) UpdateDescription(ctx context.Context, id int64, description string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE departments SET description=? WHERE id=?`, description, id)
	return err
}

func (s *departmentsStore) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE departments SET is_active=? WHERE id=?`, boolToInt(active), id)
	return err
}

func (s *departmentsStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id=?`, id)
	return err
}

func (s *departmentsStore) Get(ctx context.Context, id int64) (*Department, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, is_active, created_at FROM departments WHERE id=?`, id)
	return scanDepartment(row)
}

func (s *departmentsStore) GetByName(ctx context.Context, name string) (*Department, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, is_active, created_at FROM departments WHERE name=?`, strings.TrimSpace(name))
	return scanDepartment(row)
}

func (s *departmentsStore) List(ctx context.Context, includeInactive bool) ([]Department, error) {
	query := `SELECT id, name, description, is_active, created_at FROM departments`
	if !includeInactive {
		query += ` WHERE is_active=1`
	}
	query += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Department
	for rows.Next() {
		var d Department
		var active int
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &active, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.IsActive = active != 0
		res = append(res, d)
	}
	return res, rows.Err()
}

func scanDepartment(row *sql.Row) (*Department, error) {
	var d Department
	var active int
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &active, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.IsActive = active != 0
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
