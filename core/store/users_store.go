package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// UserProfile mirrors the profile row the permission checks run against.
// Role is exactly one of admin, admin_local, archiviste, utilisateur;
// Department is the department name the scoped roles are bound to.
type UserProfile struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	Department   string     `json:"department"`
	Status       string     `json:"status"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"`
	LastActive   *time.Time `json:"last_active,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const (
	UserStatusActive   = "Actif"
	UserStatusInactive = "Inactif"
)

func (u *UserProfile) Active() bool {
	return u != nil && u.Status == UserStatusActive
}

type UsersStore interface {
	Create(ctx context.Context, u *UserProfile) (int64, error)
	Update(ctx context.Context, u *UserProfile) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*UserProfile, error)
	FindByUsername(ctx context.Context, username string) (*UserProfile, error)
	List(ctx context.Context) ([]UserProfile, error)
	TouchLastActive(ctx context.Context, id int64, at time.Time) error
}

type usersStore struct {
	db *DB
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, username, full_name, role, department, status, phone, password_hash, last_active, created_at, updated_at`

func (s *usersStore) Create(ctx context.Context, u *UserProfile) (int64, error) {
	now := time.Now().UTC()
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	// RETURNING works on both drivers; pgx has no LastInsertId.
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users(username, full_name, role, department, status, phone, password_hash, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`,
		strings.ToLower(strings.TrimSpace(u.Username)), u.FullName, u.Role, u.Department, u.Status, u.Phone, u.PasswordHash, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return id, nil
}

func (s *usersStore) Update(ctx context.Context, u *UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name=?, role=?, department=?, status=?, phone=?, password_hash=?, updated_at=?
		WHERE id=?`,
		u.FullName, u.Role, u.Department, u.Status, u.Phone, u.PasswordHash, time.Now().UTC(), u.ID)
	return err
}

func (s *usersStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	return err
}

func (s *usersStore) Get(ctx context.Context, id int64) (*UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`, strings.ToLower(strings.TrimSpace(username)))
	return scanUser(row)
}

func (s *usersStore) List(ctx context.Context) ([]UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []UserProfile
	for rows.Next() {
		var u UserProfile
		var last sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.Department, &u.Status, &u.Phone, &u.PasswordHash, &last, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if last.Valid {
			u.LastActive = &last.Time
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *usersStore) TouchLastActive(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_active=? WHERE id=?`, at.UTC(), id)
	return err
}

func scanUser(row *sql.Row) (*UserProfile, error) {
	var u UserProfile
	var last sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.Department, &u.Status, &u.Phone, &u.PasswordHash, &last, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if last.Valid {
		u.LastActive = &last.Time
	}
	return &u, nil
}
