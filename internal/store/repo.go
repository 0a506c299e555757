package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solstice-io/solstice/internal/apperr"
	"github.com/solstice-io/solstice/internal/models"
)

const reminderColumns = `id, user_id, title, description, notes, scheduled_at, timezone,
	category, tags, priority, status, recurrence, client_ref, client_updated_at,
	created_at, updated_at, sync_status, is_deleted, deleted_at`

// Create inserts a new reminder. A missing ID is assigned server-side, and
// created_at/updated_at are stamped with the current time.
func (db *DB) Create(r *models.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	tagsJSON, recJSON, refJSON, err := encodeJSONFields(r)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Owner, r.Title, r.Description, r.Notes,
		formatTime(r.ScheduledAt), r.Timezone, r.Category, tagsJSON, r.Priority,
		r.Status, recJSON, refJSON, formatTime(r.ClientUpdatedAt),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt), r.SyncStatus,
		boolToInt(r.IsDeleted), formatTimePtr(r.DeletedAt))
	if err != nil {
		return fmt.Errorf("store: create reminder: %w", err)
	}
	return nil
}

// Save persists a mutation unconditionally, advancing updated_at past the
// record's previous value so "changed since" queries never miss a write.
func (db *DB) Save(r *models.Reminder) error {
	r.UpdatedAt = nextUpdatedAt(r.UpdatedAt)
	res, err := db.execUpdate(r, "")
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SaveIf persists a mutation only if the stored updated_at still equals
// expectedUpdatedAt (optimistic concurrency). It returns false when another
// writer got there first; the caller re-derives the conflict outcome.
func (db *DB) SaveIf(r *models.Reminder, expectedUpdatedAt time.Time) (bool, error) {
	r.UpdatedAt = nextUpdatedAt(expectedUpdatedAt)
	res, err := db.execUpdate(r, formatTime(expectedUpdatedAt))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) execUpdate(r *models.Reminder, guard string) (sql.Result, error) {
	tagsJSON, recJSON, refJSON, err := encodeJSONFields(r)
	if err != nil {
		return nil, err
	}
	query := `
		UPDATE reminders SET
			title = ?, description = ?, notes = ?, scheduled_at = ?, timezone = ?,
			category = ?, tags = ?, priority = ?, status = ?, recurrence = ?,
			client_ref = ?, client_updated_at = ?, updated_at = ?, sync_status = ?,
			is_deleted = ?, deleted_at = ?
		WHERE id = ? AND user_id = ?`
	args := []any{
		r.Title, r.Description, r.Notes, formatTime(r.ScheduledAt), r.Timezone,
		r.Category, tagsJSON, r.Priority, r.Status, recJSON,
		refJSON, formatTime(r.ClientUpdatedAt), formatTime(r.UpdatedAt), r.SyncStatus,
		boolToInt(r.IsDeleted), formatTimePtr(r.DeletedAt),
		r.ID, r.Owner,
	}
	if guard != "" {
		query += ` AND updated_at = ?`
		args = append(args, guard)
	}
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update reminder: %w", err)
	}
	return res, nil
}

// FindOne returns the reminder with the given id owned by userID, including
// soft-deleted records. Returns apperr.ErrNotFound when absent.
func (db *DB) FindOne(userID, id string) (*models.Reminder, error) {
	row := db.conn.QueryRow(`
		SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND user_id = ?
	`, id, userID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find reminder: %w", err)
	}
	return r, nil
}

// FindChangedSince returns every reminder owned by userID with
// updated_at strictly after since, ordered by updated_at ascending.
// Soft-deleted records are included so deletions propagate to other devices.
func (db *DB) FindChangedSince(userID string, since time.Time) ([]models.Reminder, error) {
	rows, err := db.conn.Query(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE user_id = ? AND updated_at > ?
		ORDER BY updated_at ASC
	`, userID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("store: changed since: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// List returns a filtered, paginated page of reminders plus the total count
// matching the filter. Soft-deleted records are excluded unless requested.
func (db *DB) List(userID string, f ListFilter) ([]models.Reminder, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if !f.IncludeDeleted {
		where = append(where, "is_deleted = 0")
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array of lowercase strings.
		where = append(where, "tags LIKE ?")
		args = append(args, `%"`+strings.ToLower(f.Tag)+`"%`)
	}
	if f.From != nil {
		where = append(where, "scheduled_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "scheduled_at <= ?")
		args = append(args, formatTime(*f.To))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM reminders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count reminders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT `+reminderColumns+` FROM reminders
		WHERE `+cond+`
		ORDER BY scheduled_at ASC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list reminders: %w", err)
	}
	defer rows.Close()
	out, err := collectReminders(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// nextUpdatedAt returns the current time, nudged forward when the clock has
// not advanced past the record's previous updated_at. Keeps updated_at
// strictly increasing per record, which delta completeness depends on.
func nextUpdatedAt(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func encodeJSONFields(r *models.Reminder) (tags, rec, ref any, err error) {
	t := r.Tags
	if t == nil {
		t = []string{}
	}
	tagsJSON, err := json.Marshal(t)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: marshal tags: %w", err)
	}
	tags = string(tagsJSON)
	rec = nil
	if r.Recurrence != nil {
		b, err := json.Marshal(r.Recurrence)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store: marshal recurrence: %w", err)
		}
		rec = string(b)
	}
	ref = nil
	if r.ClientRef != nil {
		b, err := json.Marshal(r.ClientRef)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("store: marshal client ref: %w", err)
		}
		ref = string(b)
	}
	return tags, rec, ref, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReminder(row scannable) (*models.Reminder, error) {
	var (
		r                     models.Reminder
		scheduled, clientUpd  string
		created, updated      string
		tagsJSON              string
		recJSON, refJSON      sql.NullString
		deletedAt             sql.NullString
		isDeleted             int
	)
	err := row.Scan(&r.ID, &r.Owner, &r.Title, &r.Description, &r.Notes,
		&scheduled, &r.Timezone, &r.Category, &tagsJSON, &r.Priority,
		&r.Status, &recJSON, &refJSON, &clientUpd,
		&created, &updated, &r.SyncStatus, &isDeleted, &deletedAt)
	if err != nil {
		return nil, err
	}
	r.ScheduledAt = parseTime(scheduled)
	r.ClientUpdatedAt = parseTime(clientUpd)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	r.IsDeleted = isDeleted != 0
	if deletedAt.Valid && deletedAt.String != "" {
		t := parseTime(deletedAt.String)
		r.DeletedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		r.Tags = []string{}
	}
	if recJSON.Valid && recJSON.String != "" {
		var rec models.Recurrence
		if err := json.Unmarshal([]byte(recJSON.String), &rec); err == nil {
			r.Recurrence = &rec
		}
	}
	if refJSON.Valid && refJSON.String != "" {
		var ref models.ClientReference
		if err := json.Unmarshal([]byte(refJSON.String), &ref); err == nil {
			r.ClientRef = &ref
		}
	}
	return &r, nil
}

func collectReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var out []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan reminder: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
