// Package syncengine reconciles batches of offline client edits against the
// reminder store using a per-record last-write-wins policy.
package syncengine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/solstice-io/solstice/internal/apperr"
	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/store"
)

// Change operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change is one client-submitted edit from an offline session.
type Change struct {
	ClientID        string             `json:"clientId"`
	ServerID        string             `json:"serverId,omitempty"`
	Operation       string             `json:"operation"`
	ClientUpdatedAt time.Time          `json:"clientUpdatedAt"`
	Data            models.ChangePatch `json:"data"`
}

// Validate checks the change shape. Shape errors reject the whole batch
// before anything is applied; missing-target conditions do not.
func (c Change) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.Operation, validation.Required,
			validation.In(OpInsert, OpUpdate, OpDelete)),
	); err != nil {
		return err
	}
	return c.Data.Validate()
}

// AppliedChange acknowledges one applied change, pairing the client's local
// id with the server-assigned id so the client can reconcile placeholders.
type AppliedChange struct {
	ClientID  string `json:"clientId"`
	ServerID  string `json:"serverId"`
	Operation string `json:"operation"`
}

// Conflict reports a rejected change the client must re-merge locally.
// Conflicts are a successful outcome, not an error.
type Conflict struct {
	ClientID    string           `json:"clientId"`
	ServerID    string           `json:"serverId"`
	Reason      string           `json:"reason"`
	ServerState *models.Reminder `json:"serverState"`
}

const reasonServerNewer = "Server has newer changes"

// Outcome is the result of applying a single change. Both fields nil means
// the change was a silent no-op (missing target, malformed id).
type Outcome struct {
	Applied  *AppliedChange
	Conflict *Conflict
}

// Applier applies one change at a time against the store.
type Applier struct {
	store  store.ReminderStore
	logger *slog.Logger
}

// NewApplier creates a change applier.
func NewApplier(st store.ReminderStore, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: st, logger: logger}
}

// Apply applies a single change for the given owner. device identifies the
// submitting device and is recorded in the client reference. Only
// storage-layer failures are returned as errors; missing targets and
// malformed identifiers are silent no-ops.
func (a *Applier) Apply(userID, device string, ch Change) (Outcome, error) {
	switch ch.Operation {
	case OpDelete:
		return a.applyDelete(userID, device, ch)
	case OpUpdate:
		if ch.ServerID == "" {
			// A client cannot update a record it never synced.
			return Outcome{}, nil
		}
		return a.applyUpdate(userID, device, ch)
	case OpInsert:
		return a.applyInsert(userID, device, ch)
	default:
		return Outcome{}, fmt.Errorf("syncengine: unknown operation %q", ch.Operation)
	}
}

func (a *Applier) applyDelete(userID, device string, ch Change) (Outcome, error) {
	if !wellFormedID(ch.ServerID) {
		// Deleting something that was never synced is not an error.
		return Outcome{}, nil
	}
	rec, err := a.store.FindOne(userID, ch.ServerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	now := time.Now().UTC()
	rec.IsDeleted = true
	rec.DeletedAt = &now
	rec.SyncStatus = models.SyncPending
	rec.ClientUpdatedAt = ch.ClientUpdatedAt
	rec.ClientRef = &models.ClientReference{ID: ch.ClientID, Device: device}
	if err := a.store.Save(rec); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: &AppliedChange{
		ClientID:  ch.ClientID,
		ServerID:  rec.ID,
		Operation: OpDelete,
	}}, nil
}

func (a *Applier) applyUpdate(userID, device string, ch Change) (Outcome, error) {
	if !wellFormedID(ch.ServerID) {
		return Outcome{}, nil
	}
	rec, err := a.store.FindOne(userID, ch.ServerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	// Per-record LWW: a server write newer than the client's edit wins and
	// the client change is rejected in full, never partially merged.
	if rec.UpdatedAt.After(ch.ClientUpdatedAt) {
		return a.conflictOutcome(ch, rec), nil
	}

	loadedAt := rec.UpdatedAt
	if err := ch.Data.ApplyTo(rec); err != nil {
		a.logger.Warn("sync: skipping change with bad data",
			slog.String("client_id", ch.ClientID),
			slog.String("error", err.Error()))
		return Outcome{}, nil
	}
	rec.ClientRef = &models.ClientReference{ID: ch.ClientID, Device: device}
	rec.ClientUpdatedAt = ch.ClientUpdatedAt
	rec.SyncStatus = models.SyncPending

	// Conditional write guarded by the updated_at we read; a miss means a
	// concurrent request won the race after our check.
	ok, err := a.store.SaveIf(rec, loadedAt)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		fresh, err := a.store.FindOne(userID, ch.ServerID)
		if err != nil {
			return Outcome{}, err
		}
		return a.conflictOutcome(ch, fresh), nil
	}
	return Outcome{Applied: &AppliedChange{
		ClientID:  ch.ClientID,
		ServerID:  rec.ID,
		Operation: OpUpdate,
	}}, nil
}

func (a *Applier) applyInsert(userID, device string, ch Change) (Outcome, error) {
	rec := &models.Reminder{
		Owner:           userID,
		Timezone:        "UTC",
		Category:        "general",
		ClientRef:       &models.ClientReference{ID: ch.ClientID, Device: device},
		ClientUpdatedAt: ch.ClientUpdatedAt,
		SyncStatus:      models.SyncPending,
	}
	if err := ch.Data.ApplyTo(rec); err != nil {
		a.logger.Warn("sync: skipping insert with bad data",
			slog.String("client_id", ch.ClientID),
			slog.String("error", err.Error()))
		return Outcome{}, nil
	}
	rec.Normalize()
	if err := a.store.Create(rec); err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: &AppliedChange{
		ClientID:  ch.ClientID,
		ServerID:  rec.ID,
		Operation: OpInsert,
	}}, nil
}

func (a *Applier) conflictOutcome(ch Change, serverState *models.Reminder) Outcome {
	return Outcome{Conflict: &Conflict{
		ClientID:    ch.ClientID,
		ServerID:    serverState.ID,
		Reason:      reasonServerNewer,
		ServerState: serverState,
	}}
}

// wellFormedID reports whether id looks like a server-assigned identifier.
func wellFormedID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
