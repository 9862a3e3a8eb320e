package persistence

import (
	"context"
	"time"

	"assistant_server/core/domain"
	"assistant_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Processed-Mail History (SQLite)
// =============================================================================

const historySchema = `
CREATE TABLE IF NOT EXISTS processed_mail (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id   TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	sender       TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	method       TEXT NOT NULL DEFAULT '',
	priority     TEXT NOT NULL DEFAULT '',
	notified     INTEGER NOT NULL DEFAULT 0,
	is_meeting   INTEGER NOT NULL DEFAULT 0,
	received_at  TIMESTAMP,
	processed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_mail_message_id ON processed_mail(message_id);
CREATE INDEX IF NOT EXISTS idx_processed_mail_processed_at ON processed_mail(processed_at);
`

// HistoryStore implements out.HistoryStore on SQLite. It is an append-only
// audit log; the poll loops never read it on the hot path.
type HistoryStore struct {
	db *sqlx.DB
}

// NewHistoryStore opens the database file and ensures the schema.
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, apperr.ConfigError("history", "cannot open database").WithError(err)
	}
	// SQLite serializes writers anyway; one connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, apperr.ConfigError("history", "cannot create schema").WithError(err)
	}

	return &HistoryStore{db: db}, nil
}

// Record appends one processed-mail entry.
func (s *HistoryStore) Record(ctx context.Context, entry *domain.ProcessedMail) error {
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO processed_mail
			(message_id, subject, sender, category, method, priority, notified, is_meeting, received_at, processed_at)
		VALUES
			(:message_id, :subject, :sender, :category, :method, :priority, :notified, :is_meeting, :received_at, :processed_at)`,
		entry)
	if err != nil {
		return apperr.Internal("failed to record processed mail", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]*domain.ProcessedMail, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []*domain.ProcessedMail
	err := s.db.SelectContext(ctx, &rows, `
		SELECT message_id, subject, sender, category, method, priority, notified, is_meeting, received_at, processed_at
		FROM processed_mail
		ORDER BY processed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Internal("failed to query history", err)
	}
	return rows, nil
}

// Stats aggregates the audit log for the status endpoint.
func (s *HistoryStore) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{
		ByCategory: make(map[string]int64),
		ByMethod:   make(map[string]int64),
	}

	err := s.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM processed_mail`)
	if err != nil {
		return nil, apperr.Internal("failed to count history", err)
	}
	err = s.db.GetContext(ctx, &stats.Notified, `SELECT COUNT(*) FROM processed_mail WHERE notified = 1`)
	if err != nil {
		return nil, apperr.Internal("failed to count notified", err)
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int64  `db:"count"`
	}

	var categories []bucket
	err = s.db.SelectContext(ctx, &categories, `
		SELECT category AS key, COUNT(*) AS count FROM processed_mail GROUP BY category`)
	if err != nil {
		return nil, apperr.Internal("failed to aggregate categories", err)
	}
	for _, b := range categories {
		stats.ByCategory[b.Key] = b.Count
	}

	var methods []bucket
	err = s.db.SelectContext(ctx, &methods, `
		SELECT method AS key, COUNT(*) AS count FROM processed_mail GROUP BY method`)
	if err != nil {
		return nil, apperr.Internal("failed to aggregate methods", err)
	}
	for _, b := range methods {
		stats.ByMethod[b.Key] = b.Count
	}

	return stats, nil
}

// Ping verifies the database handle for readiness checks.
func (s *HistoryStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
