// Package models holds the Reminder domain entity and its value types.
package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Priority levels, ordered low to critical.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Reminder statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Sync statuses. A reminder is "pending" when the server holds a change the
// originating client has not yet acknowledged, "synced" otherwise.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
)

// Recurrence cadences.
const (
	CadenceNone   = "none"
	CadenceDaily  = "daily"
	CadenceWeekly = "weekly"
	CadenceCustom = "custom"
)

// Recurrence describes how a reminder repeats. AnchorDate is the occurrence
// subsequent occurrences are computed from; when absent it defaults to the
// reminder's first ScheduledAt.
type Recurrence struct {
	Cadence    string     `json:"cadence"`
	Interval   int        `json:"interval,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty"`
	CustomRule string     `json:"customRule,omitempty"`
	AnchorDate *time.Time `json:"anchorDate,omitempty"`
}

// Validate checks cadence membership and interval/weekday ranges.
func (r Recurrence) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Cadence, validation.Required,
			validation.In(CadenceNone, CadenceDaily, CadenceWeekly, CadenceCustom)),
		validation.Field(&r.Interval, validation.Min(0)),
		validation.Field(&r.DaysOfWeek, validation.Each(validation.Min(0), validation.Max(6))),
	)
}

// ClientReference identifies the device and local record that produced the
// last write to a reminder.
type ClientReference struct {
	ID     string `json:"id"`
	Device string `json:"device"`
}

// Reminder is the synchronized entity. ScheduledAt is always a UTC instant;
// conversion to and from wall-clock time happens only in the tz package.
type Reminder struct {
	ID              string           `json:"id"`
	Owner           string           `json:"-"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	ScheduledAt     time.Time        `json:"scheduledAt"`
	Timezone        string           `json:"timezone"`
	Category        string           `json:"category,omitempty"`
	Tags            []string         `json:"tags"`
	Priority        string           `json:"priority"`
	Status          string           `json:"status"`
	Recurrence      *Recurrence      `json:"recurrence,omitempty"`
	ClientRef       *ClientReference `json:"clientReference,omitempty"`
	ClientUpdatedAt time.Time        `json:"clientUpdatedAt"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	SyncStatus      string           `json:"syncStatus"`
	IsDeleted       bool             `json:"isDeleted"`
	DeletedAt       *time.Time       `json:"deletedAt,omitempty"`
}

// Validate checks enum fields. Zero values are allowed here; Normalize fills
// defaults before validation at the service boundary.
func (r Reminder) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.Priority,
			validation.In(PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical)),
		validation.Field(&r.Status,
			validation.In(StatusPending, StatusCompleted, StatusCancelled)),
		validation.Field(&r.SyncStatus, validation.In(SyncPending, SyncSynced)),
	)
	if err != nil {
		return err
	}
	if r.Recurrence != nil {
		return r.Recurrence.Validate()
	}
	return nil
}

// Normalize fills enum defaults, lowercases and dedupes tags, and anchors a
// repeating recurrence at the first ScheduledAt when no anchor is given.
func (r *Reminder) Normalize() {
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.SyncStatus == "" {
		r.SyncStatus = SyncSynced
	}
	r.Tags = NormalizeTags(r.Tags)
	if r.Recurrence != nil {
		if r.Recurrence.Cadence == "" {
			r.Recurrence.Cadence = CadenceNone
		}
		if r.Recurrence.Cadence != CadenceNone && r.Recurrence.AnchorDate == nil && !r.ScheduledAt.IsZero() {
			anchor := r.ScheduledAt
			r.Recurrence.AnchorDate = &anchor
		}
	}
}

// NormalizeTags lowercases, trims, and dedupes tags, preserving first-seen
// order. Tags behave as a set.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NextOccurrence computes the first occurrence strictly after the given
// instant, or the zero time when the reminder does not repeat.
func (r Reminder) NextOccurrence(after time.Time) time.Time {
	rec := r.Recurrence
	if rec == nil || rec.Cadence == CadenceNone {
		return time.Time{}
	}
	anchor := r.ScheduledAt
	if rec.AnchorDate != nil {
		anchor = *rec.AnchorDate
	}
	if anchor.IsZero() {
		return time.Time{}
	}
	interval := rec.Interval
	if interval <= 0 {
		interval = 1
	}

	switch rec.Cadence {
	case CadenceDaily, CadenceCustom:
		step := time.Duration(interval) * 24 * time.Hour
		next := anchor
		for !next.After(after) {
			next = next.Add(step)
		}
		return next
	case CadenceWeekly:
		days := rec.DaysOfWeek
		if len(days) == 0 {
			days = []int{int(anchor.Weekday())}
		}
		allowed := make(map[int]struct{}, len(days))
		for _, d := range days {
			allowed[d] = struct{}{}
		}
		// Every N weeks: weeks are counted from the anchor, and only the
		// first seven days of each N-week stride are active. Jump to the
		// stride containing the cutoff so an old anchor costs nothing.
		stride := 7 * interval
		start := anchor
		if after.After(start) {
			elapsed := int(after.Sub(start).Hours()) / 24
			start = start.Add(time.Duration(elapsed/stride*stride) * 24 * time.Hour)
		}
		next := start
		for i := 0; i < 2*stride+7; i++ {
			if next.After(after) {
				offset := int(next.Sub(anchor).Hours()) / 24
				if offset%stride < 7 {
					if _, ok := allowed[int(next.Weekday())]; ok {
						return next
					}
				}
			}
			next = next.Add(24 * time.Hour)
		}
		return time.Time{}
	}
	return time.Time{}
}

// ChangePatch is the typed partial-update payload carried by a sync change
// or a PATCH request. Pointer fields distinguish "omitted" (nil) from
// "explicitly cleared" (pointer to zero value).
type ChangePatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	ScheduledAt *string     `json:"scheduledAt,omitempty"`
	Timezone    *string     `json:"timezone,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
	Priority    *string     `json:"priority,omitempty"`
	Status      *string     `json:"status,omitempty"`
	Recurrence  *Recurrence `json:"recurrence,omitempty"`
}

// Validate checks enum membership for the fields that are present.
func (p ChangePatch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Priority, validation.In(PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical)),
		validation.Field(&p.Status, validation.In(StatusPending, StatusCompleted, StatusCancelled)),
	)
	if err != nil {
		return err
	}
	if p.Recurrence != nil {
		return p.Recurrence.Validate()
	}
	return nil
}
