package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/me/gopop/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so that stored timestamps order lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Journal using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	serverID string
	logger   *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Journal.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	serverID := "srv_" + uuid.New().String()
	return &SQLiteStore{
		db:       db,
		serverID: serverID,
		logger:   logger.With("component", "store", "server_id", serverID),
	}, nil
}

// ServerID identifies this process in the journal. Every event it appends is
// tagged with it.
func (s *SQLiteStore) ServerID() string {
	return s.serverID
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// AppendEvent stores ev. A zero ev.At is replaced with the current time.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *model.Event) error {
	s.logger.Debug("sql", "op", "insert", "table", "events", "seq", ev.Seq, "kind", ev.Kind)

	detail := ev.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (seq, kind, request_id, description, priority, from_state, to_state, detail, server_id, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Seq, string(ev.Kind), ev.RequestID, ev.Description, ev.Priority,
		string(ev.From), string(ev.To), string(detailJSON), s.serverID,
		ev.At.UTC().Format(timeFormat),
	)
	return err
}

// ListEvents returns journaled events, oldest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, opts model.ListOptions) ([]*model.Event, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "events", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var countArgs []any
	if opts.RequestID != "" {
		whereSQL = " WHERE request_id = ?"
		countArgs = append(countArgs, opts.RequestID)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM events` + whereSQL
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT seq, kind, request_id, description, priority, from_state, to_state, detail, at
		FROM events` + whereSQL + ` ORDER BY id ASC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var ev model.Event
		var kind, from, to, detailJSON, at string

		if err := rows.Scan(&ev.Seq, &kind, &ev.RequestID, &ev.Description, &ev.Priority,
			&from, &to, &detailJSON, &at); err != nil {
			return nil, 0, err
		}

		ev.Kind = model.EventKind(kind)
		ev.From = model.ArbiterState(from)
		ev.To = model.ArbiterState(to)
		if detailJSON != "" && detailJSON != "{}" {
			if err := json.Unmarshal([]byte(detailJSON), &ev.Detail); err != nil {
				return nil, 0, fmt.Errorf("unmarshal detail: %w", err)
			}
		}
		ev.At, _ = time.Parse(timeFormat, at)

		events = append(events, &ev)
	}
	return events, total, rows.Err()
}

// Prune deletes events recorded before the cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.logger.Debug("sql", "op", "delete", "table", "events", "before", before)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE at < ?`, before.UTC().Format(timeFormat))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
