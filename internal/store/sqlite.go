package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/supreme-gg-gg/multiflex/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS pending_prompts (
		user_id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_entries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_entries_session ON chat_entries(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SavePending stores a prompt for the next session start.
func (s *SQLiteStore) SavePending(ctx context.Context, req *domain.PendingRequest) error {
	userID := req.UserID
	if userID == "" {
		userID = domain.DefaultUserID
	}

	query := `
	INSERT INTO pending_prompts (user_id, prompt, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		prompt = excluded.prompt,
		created_at = excluded.created_at`

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := s.db.ExecContext(ctx, query, userID, req.Prompt, createdAt.Unix()); err != nil {
		return fmt.Errorf("save pending prompt: %w", err)
	}
	return nil
}

// TakePending returns and clears the pending prompt atomically: a prompt
// is consumed by exactly one session start.
func (s *SQLiteStore) TakePending(ctx context.Context, userID string) (*domain.PendingRequest, error) {
	if userID == "" {
		userID = domain.DefaultUserID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin take pending: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to roll back take pending", "error", rbErr)
		}
	}()

	var req domain.PendingRequest
	var createdAt int64
	row := tx.QueryRowContext(ctx,
		`SELECT user_id, prompt, created_at FROM pending_prompts WHERE user_id = ?`, userID)
	if err := row.Scan(&req.UserID, &req.Prompt, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoPending
		}
		return nil, fmt.Errorf("scan pending prompt: %w", err)
	}
	req.CreatedAt = time.Unix(createdAt, 0)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_prompts WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("clear pending prompt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit take pending: %w", err)
	}
	return &req, nil
}

// ClearPending removes any pending prompt for a user.
func (s *SQLiteStore) ClearPending(ctx context.Context, userID string) error {
	if userID == "" {
		userID = domain.DefaultUserID
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_prompts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear pending prompt: %w", err)
	}
	return nil
}

// AppendEntry persists one transcript entry.
func (s *SQLiteStore) AppendEntry(ctx context.Context, sessionID, userID string, entry domain.ChatEntry) error {
	query := `
	INSERT INTO chat_entries (id, session_id, user_id, sender, text, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, sessionID, userID, string(entry.Sender), entry.Text, entry.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("append chat entry: %w", err)
	}
	return nil
}

// ListEntries returns the persisted transcript for a session.
func (s *SQLiteStore) ListEntries(ctx context.Context, sessionID string) ([]domain.ChatEntry, error) {
	query := `
	SELECT id, sender, text, created_at
	FROM chat_entries WHERE session_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query chat entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat entry rows", "error", closeErr)
		}
	}()

	var entries []domain.ChatEntry
	for rows.Next() {
		var entry domain.ChatEntry
		var sender string
		var createdAt int64
		if err := rows.Scan(&entry.ID, &sender, &entry.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat entry: %w", err)
		}
		entry.Sender = domain.Sender(sender)
		entry.Timestamp = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat entries: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
