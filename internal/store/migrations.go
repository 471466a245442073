package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for the journal tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		seq         INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		request_id  TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		priority    INTEGER NOT NULL DEFAULT 0,
		from_state  TEXT NOT NULL DEFAULT '',
		to_state    TEXT NOT NULL DEFAULT '',
		at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_request_id ON events(request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_at ON events(at)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "events",
		column:   "detail",
		alterSQL: "ALTER TABLE events ADD COLUMN detail TEXT NOT NULL DEFAULT '{}'",
	},
	{
		table:    "events",
		column:   "server_id",
		alterSQL: "ALTER TABLE events ADD COLUMN server_id TEXT NOT NULL DEFAULT ''",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_events_server_id ON events(server_id)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}

	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if strings.EqualFold(name, column) {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	// Close before the ALTER: with a single connection the open cursor
	// would hold it.
	rows.Close()

	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
