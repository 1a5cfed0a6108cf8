package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoriesStore interface {
	Create(ctx context.Context, c *Category) (int64, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Category, error)
	List(ctx context.Context) ([]Category, error)
}

type categoriesStore struct {
	db *DB
}

func NewCategoriesStore(db *DB) CategoriesStore {
	return &categoriesStore{db: db}
}

func (s *categoriesStore) Create(ctx context.Context, c *Category) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO categories(name, description, created_at) VALUES(?,?,?) RETURNING id`,
		strings.TrimSpace(c.Name), c.Description, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	c.ID = id
	c.CreatedAt = now
	return id, nil
}

func (s *categoriesStore) Update(ctx context.Context, c *Category) error {
	_, err := s.db.ExecContext(ctx, `UPDATE categories SET name=?, description=? WHERE id=?`, strings.TrimSpace(c.Name), c.Description, c.ID)
	return err
}

func (s *categoriesStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	return err
}

func (s *categoriesStore) Get(ctx context.Context, id int64) (*Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM categories WHERE id=?`, id)
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *categoriesStore) List(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
