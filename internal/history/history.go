// Package history keeps a per-user log of check-in attempts in an
// embedded SQLite database, so users can audit what the bot did on their
// behalf via the history command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

// Source of a check-in attempt.
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
)

// Entry is one recorded attempt.
type Entry struct {
	ID        int64
	UserID    string
	Success   bool
	Message   string
	Source    string
	CreatedAt time.Time
}

// Repo defines the storage operations for the attempt log.
type Repo interface {
	Record(ctx context.Context, userID string, result domain.CheckinResult, source string) error
	Recent(ctx context.Context, userID string, limit int) ([]Entry, error)
	Close() error
}

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at the given path, applies
// recommended PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single-writer engine; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Record appends one attempt to the log.
func (r *SQLiteRepo) Record(ctx context.Context, userID string, result domain.CheckinResult, source string) error {
	success := 0
	if result.Success {
		success = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkins (user_id, success, message, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, success, result.Message, source, time.Now().UTC().Unix(),
	)
	return err
}

// Recent returns up to limit attempts for a user, newest first.
func (r *SQLiteRepo) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, success, message, source, created_at
		FROM checkins
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			e         Entry
			success   int
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &success, &e.Message, &e.Source, &createdAt); err != nil {
			return nil, err
		}
		e.Success = success != 0
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
