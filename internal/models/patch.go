package models

import "github.com/solstice-io/solstice/internal/tz"

// ApplyTo copies the fields present in the patch onto the record. A
// scheduledAt value is re-normalized to UTC through the tz package, using
// the patch's timezone when one is supplied and the record's otherwise.
func (p ChangePatch) ApplyTo(rec *Reminder) error {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Notes != nil {
		rec.Notes = *p.Notes
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.Timezone != nil {
		rec.Timezone = tz.Ensure(*p.Timezone)
	}
	if p.ScheduledAt != nil {
		instant, err := tz.ParseToUTC(*p.ScheduledAt, rec.Timezone, nil)
		if err != nil {
			return err
		}
		rec.ScheduledAt = instant
	}
	if p.Tags != nil {
		rec.Tags = NormalizeTags(*p.Tags)
	}
	if p.Priority != nil {
		rec.Priority = *p.Priority
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Recurrence != nil {
		rec.Recurrence = p.Recurrence
		if rec.Recurrence.Cadence != CadenceNone && rec.Recurrence.AnchorDate == nil && !rec.ScheduledAt.IsZero() {
			anchor := rec.ScheduledAt
			rec.Recurrence.AnchorDate = &anchor
		}
	}
	return nil
}
