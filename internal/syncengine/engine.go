package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/solstice-io/solstice/internal/apperr"
	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/store"
	"github.com/solstice-io/solstice/internal/tz"
)

// Request is the sync request body: the submitting device, the client's
// last-sync watermark, and its accumulated offline changes.
type Request struct {
	ClientID   string     `json:"clientId"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
	Changes    []Change   `json:"changes"`
}

// Validate rejects malformed requests before any change is applied.
func (r Request) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.ClientID, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	for i, ch := range r.Changes {
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("%w: change %d: %s", apperr.ErrValidation, i, err)
		}
	}
	return nil
}

// ReminderPayload is a reminder as delivered to clients, annotated with the
// display projection in the requesting timezone.
type ReminderPayload struct {
	models.Reminder
	Localized      tz.Local   `json:"localized"`
	NextOccurrence *time.Time `json:"nextOccurrence,omitempty"`
}

// Result is the consolidated sync response.
type Result struct {
	AppliedChanges []AppliedChange   `json:"appliedChanges"`
	Conflicts      []Conflict        `json:"conflicts"`
	ServerChanges  []ReminderPayload `json:"serverChanges"`
	ServerTime     time.Time         `json:"serverTime"`
}

// Engine drives the change applier over a batch and assembles the delta of
// server-side changes since the client's watermark.
type Engine struct {
	store   store.ReminderStore
	applier *Applier
	logger  *slog.Logger

	// MaxBatch caps the number of changes accepted per request; larger
	// batches are rejected as a validation error before anything applies.
	MaxBatch int
	// DefaultTimezone is used for display projections when the request
	// names no timezone.
	DefaultTimezone string
}

// New creates a sync engine.
func New(st store.ReminderStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:           st,
		applier:         NewApplier(st, logger),
		logger:          logger,
		MaxBatch:        500,
		DefaultTimezone: "UTC",
	}
}

// Sync applies the batch strictly in the order given, then returns every
// record owned by userID changed since the watermark. requestTimezone is
// used only for the display projection on serverChanges.
//
// A storage failure mid-batch stops further applies; changes already
// applied stay applied and the response still reports them, so the client
// retries whatever it does not see acknowledged.
func (e *Engine) Sync(ctx context.Context, userID, requestTimezone string, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.MaxBatch > 0 && len(req.Changes) > e.MaxBatch {
		return nil, fmt.Errorf("%w: batch of %d changes exceeds limit %d",
			apperr.ErrValidation, len(req.Changes), e.MaxBatch)
	}
	if requestTimezone == "" {
		requestTimezone = e.DefaultTimezone
	}
	zone := tz.Ensure(requestTimezone)

	res := &Result{
		AppliedChanges: []AppliedChange{},
		Conflicts:      []Conflict{},
		ServerChanges:  []ReminderPayload{},
	}

	for i, ch := range req.Changes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := e.applier.Apply(userID, req.ClientID, ch)
		if err != nil {
			e.logger.Error("sync: apply failed, stopping batch",
				slog.String("user_id", userID),
				slog.String("client_id", ch.ClientID),
				slog.Int("change_index", i),
				slog.String("error", err.Error()))
			break
		}
		if out.Applied != nil {
			res.AppliedChanges = append(res.AppliedChanges, *out.Applied)
		}
		if out.Conflict != nil {
			res.Conflicts = append(res.Conflicts, *out.Conflict)
		}
	}

	// Epoch default: a client that never synced gets everything.
	since := time.Time{}
	if req.LastSyncAt != nil {
		since = *req.LastSyncAt
	}
	changed, err := e.store.FindChangedSince(userID, since)
	if err != nil {
		return nil, fmt.Errorf("syncengine: delta query: %w", err)
	}
	for _, rec := range changed {
		res.ServerChanges = append(res.ServerChanges, Annotate(rec, zone))
	}
	res.ServerTime = time.Now().UTC()

	e.logger.Info("sync completed",
		slog.String("user_id", userID),
		slog.String("device", req.ClientID),
		slog.Int("applied", len(res.AppliedChanges)),
		slog.Int("conflicts", len(res.Conflicts)),
		slog.Int("server_changes", len(res.ServerChanges)))
	return res, nil
}

// Annotate attaches the localized projection (and next occurrence for
// repeating reminders) to a reminder payload.
func Annotate(rec models.Reminder, zone string) ReminderPayload {
	p := ReminderPayload{
		Reminder:  rec,
		Localized: tz.ProjectToLocal(rec.ScheduledAt, zone),
	}
	if next := rec.NextOccurrence(time.Now().UTC()); !next.IsZero() {
		p.NextOccurrence = &next
	}
	return p
}
