package mcpserver

// ReminderFormatContract is the canonical reminder payload description
// served to MCP clients so generated reminders land in the right shape.
const ReminderFormatContract = `# Solstice Reminder Format

A reminder is a JSON object with the following fields:

- title (string, required): short description of the reminder.
- scheduledAt (string, required): either a date-only value "YYYY-MM-DD" or
  an ISO-8601 date-time. Date-only values mean midnight in the reminder's
  timezone. The server always stores the instant in UTC.
- timezone (string): IANA zone name, e.g. "America/Chicago". Unknown or
  missing zones fall back to "UTC".
- category (string): free-form grouping label, defaults to "general".
- tags (array of strings): lowercased and deduplicated by the server.
- priority (string): one of "low", "medium", "high", "critical".
  Defaults to "medium".
- description, notes (string): optional free text.
- recurrence (object): optional, with fields cadence ("none", "daily",
  "weekly", "custom"), interval (int), daysOfWeek (0=Sunday..6=Saturday),
  customRule (string), anchorDate (ISO-8601). A repeating reminder with no
  anchor is anchored at its first scheduledAt.

Status transitions ("pending" -> "completed"/"cancelled") happen through
the complete_reminder tool or the REST API, not by editing status directly.
`
