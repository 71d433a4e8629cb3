package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/dailyrun/internal/storage"

	_ "modernc.org/sqlite"
)

// Fixed-width so that lexical order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const launchColumns = `id, app, trigger, status, sandbox_id, image, error, expires_at, created_at, updated_at`

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A scheduled launch may write while the status API reads; one
	// connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateLaunch(ctx context.Context, l *storage.Launch) error {
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launches (`+launchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.App, l.Trigger, l.Status, l.SandboxID, l.Image, l.Error,
		formatTime(l.ExpiresAt), formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting launch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLaunch(ctx context.Context, id string) (*storage.Launch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+launchColumns+` FROM launches WHERE id = ?`, id)
	l, err := scanLaunch(row)
	if err == nil {
		return l, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("querying launch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+launchColumns+` FROM launches WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying launch: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Launch
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous launch prefix %q matches %d launches", id, len(matches))
	}
}

func (s *SQLiteStore) ListLaunches(ctx context.Context, opts storage.ListOptions) ([]storage.Launch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + launchColumns + ` FROM launches`
	var args []any

	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}

	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing launches: %w", err)
	}
	defer rows.Close()

	var launches []storage.Launch
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, *l)
	}
	return launches, rows.Err()
}

func (s *SQLiteStore) UpdateLaunch(ctx context.Context, l *storage.Launch) error {
	l.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE launches SET status = ?, sandbox_id = ?, image = ?, error = ?, expires_at = ?, updated_at = ?
		WHERE id = ?`,
		l.Status, l.SandboxID, l.Image, l.Error, formatTime(l.ExpiresAt), formatTime(l.UpdatedAt), l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating launch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, l.ID)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner works with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanLaunch(s scanner) (*storage.Launch, error) {
	var l storage.Launch
	var expiresAt, createdAt, updatedAt string
	err := s.Scan(&l.ID, &l.App, &l.Trigger, &l.Status, &l.SandboxID, &l.Image, &l.Error,
		&expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.ExpiresAt = parseTime(expiresAt)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
