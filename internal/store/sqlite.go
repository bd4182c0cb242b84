package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quickchess/server/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
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
	CREATE TABLE IF NOT EXISTS game_records (
		session_id TEXT PRIMARY KEY,
		first_player TEXT NOT NULL DEFAULT '',
		second_player TEXT NOT NULL DEFAULT '',
		lifecycle TEXT NOT NULL,
		initial_position TEXT NOT NULL,
		final_position TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_game_records_lifecycle ON game_records(lifecycle);
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

// CreateRecord persists a new session record.
func (s *SQLiteStore) CreateRecord(ctx context.Context, record *Record) error {
	query := `
	INSERT INTO game_records (
		session_id, first_player, second_player, lifecycle,
		initial_position, final_position, outcome, reason,
		created_at, completed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var completedAt interface{}
	if record.CompletedAt != nil {
		completedAt = record.CompletedAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, query,
		record.SessionID, record.FirstPlayer, record.SecondPlayer,
		string(record.Lifecycle), record.InitialPosition, record.FinalPosition,
		string(record.Outcome), string(record.Reason),
		record.CreatedAt.Unix(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game record: %w", err)
	}
	return nil
}

// UpdateRecord applies a partial update to an existing record.
func (s *SQLiteStore) UpdateRecord(ctx context.Context, sessionID string, update RecordUpdate) error {
	setClauses := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)

	appendSet := func(column string, value interface{}) {
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}

	if update.FirstPlayer != nil {
		appendSet("first_player", *update.FirstPlayer)
	}
	if update.SecondPlayer != nil {
		appendSet("second_player", *update.SecondPlayer)
	}
	if update.Lifecycle != nil {
		appendSet("lifecycle", string(*update.Lifecycle))
	}
	if update.FinalPosition != nil {
		appendSet("final_position", *update.FinalPosition)
	}
	if update.Outcome != nil {
		appendSet("outcome", string(*update.Outcome))
	}
	if update.Reason != nil {
		appendSet("reason", string(*update.Reason))
	}
	if update.CompletedAt != nil {
		appendSet("completed_at", update.CompletedAt.Unix())
	}

	if len(setClauses) == 0 {
		return nil
	}

	query := "UPDATE game_records SET "
	for i, clause := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE session_id = ?"
	args = append(args, sessionID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update game record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("game record not found: %s", sessionID)
	}

	return nil
}

// FindRecord retrieves a record by session ID.
func (s *SQLiteStore) FindRecord(ctx context.Context, sessionID string) (*Record, error) {
	query := `
	SELECT session_id, first_player, second_player, lifecycle,
	       initial_position, final_position, outcome, reason,
	       created_at, completed_at
	FROM game_records WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var record Record
	var lifecycle, outcome, reason string
	var createdAt int64
	var completedAt sql.NullInt64

	err := row.Scan(
		&record.SessionID, &record.FirstPlayer, &record.SecondPlayer, &lifecycle,
		&record.InitialPosition, &record.FinalPosition, &outcome, &reason,
		&createdAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan game record: %w", err)
	}

	record.Lifecycle = domain.Lifecycle(lifecycle)
	record.Outcome = domain.Outcome(outcome)
	record.Reason = domain.Reason(reason)
	record.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		record.CompletedAt = &t
	}

	return &record, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
