// Package reminderservice implements the owner-scoped CRUD surface over the
// reminder store. The offline sync path lives in syncengine; both share the
// store and the tz normalizer.
package reminderservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/solstice-io/solstice/internal/apperr"
	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/store"
	"github.com/solstice-io/solstice/internal/syncengine"
	"github.com/solstice-io/solstice/internal/tz"
)

// Notifier is called after a successful mutation. kind is one of
// "created", "updated", "deleted".
type Notifier func(kind, id string)

// Service coordinates store and timezone operations for the REST layer.
type Service struct {
	store  store.ReminderStore
	logger *slog.Logger
	notify Notifier
}

// NewService creates a reminder service. notify may be nil.
func NewService(st store.ReminderStore, logger *slog.Logger, notify Notifier) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Service{store: st, logger: logger, notify: notify}
}

// CreateInput is the payload for a direct create call. ScheduledAt accepts
// a date-only or date-time string interpreted in Timezone.
type CreateInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Notes       string             `json:"notes"`
	ScheduledAt string             `json:"scheduledAt"`
	Timezone    string             `json:"timezone"`
	Category    string             `json:"category"`
	Tags        []string           `json:"tags"`
	Priority    string             `json:"priority"`
	Recurrence  *models.Recurrence `json:"recurrence,omitempty"`
}

// Validate checks the create payload shape.
func (in CreateInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.ScheduledAt, validation.Required),
		validation.Field(&in.Priority, validation.In(
			models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical)),
	); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	if in.Recurrence != nil {
		if err := in.Recurrence.Validate(); err != nil {
			return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
		}
	}
	return nil
}

// Create validates, normalizes, and persists a new reminder.
func (s *Service) Create(_ context.Context, userID string, in CreateInput) (*syncengine.ReminderPayload, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	zone := tz.Ensure(in.Timezone)
	instant, err := tz.ParseToUTC(in.ScheduledAt, zone, nil)
	if err != nil {
		return nil, err
	}
	rec := &models.Reminder{
		Owner:       userID,
		Title:       in.Title,
		Description: in.Description,
		Notes:       in.Notes,
		ScheduledAt: instant,
		Timezone:    zone,
		Category:    in.Category,
		Tags:        in.Tags,
		Priority:    in.Priority,
		Recurrence:  in.Recurrence,
		SyncStatus:  models.SyncPending,
	}
	if rec.Category == "" {
		rec.Category = "general"
	}
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	if err := s.store.Create(rec); err != nil {
		return nil, err
	}
	s.notify("created", rec.ID)
	p := syncengine.Annotate(*rec, zone)
	return &p, nil
}

// Get returns a single reminder owned by userID.
func (s *Service) Get(_ context.Context, userID, id, zone string) (*syncengine.ReminderPayload, error) {
	rec, err := s.store.FindOne(userID, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted {
		return nil, apperr.ErrNotFound
	}
	p := syncengine.Annotate(*rec, tz.Ensure(zone))
	return &p, nil
}

// ListParams narrows a listing. From and To accept date-only strings; a
// "from" bound means start of day and a "to" bound end of day in Timezone.
type ListParams struct {
	Status   string
	Category string
	Tag      string
	Priority string
	From     string
	To       string
	Timezone string
	Limit    int
	Offset   int
}

// List returns a filtered page of reminders and the total match count.
func (s *Service) List(_ context.Context, userID string, p ListParams) ([]syncengine.ReminderPayload, int, error) {
	zone := tz.Ensure(p.Timezone)
	f := store.ListFilter{
		Status:   p.Status,
		Category: p.Category,
		Tag:      p.Tag,
		Priority: p.Priority,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	if p.From != "" {
		from, err := tz.ParseToUTC(p.From, zone, &tz.StartOfDay)
		if err != nil {
			return nil, 0, err
		}
		f.From = &from
	}
	if p.To != "" {
		to, err := tz.ParseToUTC(p.To, zone, &tz.EndOfDay)
		if err != nil {
			return nil, 0, err
		}
		f.To = &to
	}
	recs, total, err := s.store.List(userID, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]syncengine.ReminderPayload, len(recs))
	for i, rec := range recs {
		out[i] = syncengine.Annotate(rec, zone)
	}
	return out, total, nil
}

// Update applies a typed patch to an existing reminder. Returns
// apperr.ErrConflict when a concurrent write lands between read and write.
func (s *Service) Update(_ context.Context, userID, id string, patch models.ChangePatch, zone string) (*syncengine.ReminderPayload, error) {
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	rec, err := s.store.FindOne(userID, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted {
		return nil, apperr.ErrNotFound
	}
	loadedAt := rec.UpdatedAt
	if err := patch.ApplyTo(rec); err != nil {
		return nil, err
	}
	rec.ClientUpdatedAt = time.Now().UTC()
	rec.SyncStatus = models.SyncPending
	ok, err := s.store.SaveIf(rec, loadedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrConflict
	}
	s.notify("updated", rec.ID)
	p := syncengine.Annotate(*rec, tz.Ensure(zone))
	return &p, nil
}

// Complete marks a reminder completed.
func (s *Service) Complete(ctx context.Context, userID, id, zone string) (*syncengine.ReminderPayload, error) {
	status := models.StatusCompleted
	return s.Update(ctx, userID, id, models.ChangePatch{Status: &status}, zone)
}

// Delete soft-deletes a reminder. The record stays in the store so the
// deletion propagates through delta sync.
func (s *Service) Delete(_ context.Context, userID, id string) error {
	rec, err := s.store.FindOne(userID, id)
	if err != nil {
		return err
	}
	if rec.IsDeleted {
		return apperr.ErrNotFound
	}
	now := time.Now().UTC()
	rec.IsDeleted = true
	rec.DeletedAt = &now
	rec.SyncStatus = models.SyncPending
	if err := s.store.Save(rec); err != nil {
		return err
	}
	s.notify("deleted", rec.ID)
	return nil
}
