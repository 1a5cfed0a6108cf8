package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"archidoc/config"
	"archidoc/core/utils"
)

// DB wraps *sql.DB and adapts the stores' `?` placeholders to the opened
// driver: pgx only accepts `$N`, sqlite accepts both. Store queries are
// written once with `?` and rebound here.
type DB struct {
	*sql.DB
	driver string
}

func Wrap(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver}
}

func (d *DB) rebind(query string) string {
	if d.driver != "postgres" || !strings.ContainsRune(query, '?') {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.rebind(query), args...)
}

// NewDB opens the configured database. sqlite is the default and what the
// test suite runs against; postgres is selected with db_driver=postgres and
// a db_url.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*DB, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("db dir: %w", err)
			}
		}
		db, err := sql.Open("sqlite", cfg.DBPath)
		if err != nil {
			return nil, err
		}
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY under concurrent handlers.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			`PRAGMA journal_mode=WAL;`,
			`PRAGMA foreign_keys=ON;`,
			`PRAGMA busy_timeout=5000;`,
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("pragma: %w", err)
			}
		}
		if logger != nil {
			logger.Printf("DB sqlite open path=%s", cfg.DBPath)
		}
		return Wrap(db, "sqlite"), nil
	case "postgres":
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if logger != nil {
			logger.Printf("DB postgres open")
		}
		return Wrap(db, "postgres"), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
