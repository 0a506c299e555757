// Package store provides the SQLite-backed reminder store.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/solstice-io/solstice/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reminders (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	scheduled_at      TEXT NOT NULL DEFAULT '',
	timezone          TEXT NOT NULL DEFAULT 'UTC',
	category          TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	priority          TEXT NOT NULL DEFAULT 'medium',
	status            TEXT NOT NULL DEFAULT 'pending',
	recurrence        TEXT,
	client_ref        TEXT,
	client_updated_at TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	sync_status       TEXT NOT NULL DEFAULT 'synced',
	is_deleted        INTEGER NOT NULL DEFAULT 0,
	deleted_at        TEXT
);

CREATE INDEX IF NOT EXISTS idx_reminders_user_updated   ON reminders(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_reminders_user_scheduled ON reminders(user_id, scheduled_at);
`

// timeLayout is a fixed-width RFC3339 form so stored timestamps compare
// correctly as strings in SQL (RFC3339Nano trims trailing zeros and does
// not sort lexicographically).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB with reminder-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// ListFilter narrows a List query. From/To are UTC instants (already
// normalized by the tz package); zero-value fields are ignored.
type ListFilter struct {
	Status         string
	Category       string
	Tag            string
	Priority       string
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ReminderStore defines the persistence operations the sync engine and the
// reminder service depend on. Consumers should depend on this interface
// rather than the concrete *DB type to facilitate testing with mocks.
type ReminderStore interface {
	Create(r *models.Reminder) error
	Save(r *models.Reminder) error
	SaveIf(r *models.Reminder, expectedUpdatedAt time.Time) (bool, error)
	FindOne(userID, id string) (*models.Reminder, error)
	FindChangedSince(userID string, since time.Time) ([]models.Reminder, error)
	List(userID string, f ListFilter) ([]models.Reminder, int, error)
	Close() error
}

// Verify *DB satisfies ReminderStore at compile time.
var _ ReminderStore = (*DB)(nil)
