package api

import (
	"github.com/solstice-io/solstice/internal/reminderservice"
	"github.com/solstice-io/solstice/internal/syncengine"
)

// SyncRequest is the request body for POST /reminders/sync (aliased from
// the sync engine).
type SyncRequest = syncengine.Request

// SyncResult is the data payload of a sync response.
type SyncResult = syncengine.Result

// CreateReminderRequest is the request body for POST /reminders.
type CreateReminderRequest = reminderservice.CreateInput

// ReminderPayload is a reminder with its localized projection.
type ReminderPayload = syncengine.ReminderPayload

// ReminderListResponse wraps paginated reminder listings.
type ReminderListResponse struct {
	Reminders []ReminderPayload `json:"reminders"`
	Total     int               `json:"total"`
}
