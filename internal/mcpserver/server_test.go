package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(testutil.TestStore(t))
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	var (
		res *mcp.CallToolResult
		err error
	)
	ctx := context.Background()
	switch name {
	case "list_reminders":
		res, err = s.listReminders(ctx, req)
	case "get_reminder":
		res, err = s.getReminder(ctx, req)
	case "create_reminder":
		res, err = s.createReminder(ctx, req)
	case "complete_reminder":
		res, err = s.completeReminder(ctx, req)
	case "delete_reminder":
		res, err = s.deleteReminder(ctx, req)
	case "get_reminder_contract":
		res, err = s.getReminderContract(ctx, req)
	default:
		t.Fatalf("unknown tool %q", name)
	}
	if err != nil {
		t.Fatalf("tool %s: %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func createdID(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	text := resultText(t, res)
	id, found := strings.CutPrefix(text, "created: ")
	if !found {
		t.Fatalf("unexpected create result %q", text)
	}
	return id
}

func TestCreateAndGetReminder(t *testing.T) {
	s := testServer(t)

	res := callTool(t, s, "create_reminder", map[string]any{
		"title":        "water plants",
		"scheduled_at": "2024-07-01",
		"timezone":     "America/Chicago",
		"priority":     "high",
	})
	if res.IsError {
		t.Fatalf("create failed: %s", resultText(t, res))
	}
	id := createdID(t, res)

	res = callTool(t, s, "get_reminder", map[string]any{"id": id})
	if res.IsError {
		t.Fatalf("get failed: %s", resultText(t, res))
	}
	var got struct {
		Title    string `json:"title"`
		Priority string `json:"priority"`
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != "water plants" || got.Priority != models.PriorityHigh || got.Timezone != "America/Chicago" {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateReminderMissingArgs(t *testing.T) {
	s := testServer(t)

	res := callTool(t, s, "create_reminder", map[string]any{"title": "no date"})
	if !res.IsError {
		t.Error("expected error for missing scheduled_at")
	}
	res = callTool(t, s, "create_reminder", map[string]any{"scheduled_at": "2024-07-01"})
	if !res.IsError {
		t.Error("expected error for missing title")
	}
}

func TestListRemindersFiltered(t *testing.T) {
	s := testServer(t)

	for _, c := range []struct{ title, priority string }{
		{"errand", "low"},
		{"deadline", "critical"},
	} {
		res := callTool(t, s, "create_reminder", map[string]any{
			"title":        c.title,
			"scheduled_at": "2024-07-01",
			"priority":     c.priority,
		})
		if res.IsError {
			t.Fatalf("create failed: %s", resultText(t, res))
		}
	}

	res := callTool(t, s, "list_reminders", map[string]any{"priority": "critical"})
	if res.IsError {
		t.Fatalf("list failed: %s", resultText(t, res))
	}
	var items []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].Title != "deadline" {
		t.Errorf("items = %+v", items)
	}
}

func TestCompleteAndDeleteReminder(t *testing.T) {
	s := testServer(t)

	res := callTool(t, s, "create_reminder", map[string]any{
		"title":        "chore",
		"scheduled_at": "2024-07-01",
	})
	id := createdID(t, res)

	res = callTool(t, s, "complete_reminder", map[string]any{"id": id})
	if res.IsError {
		t.Fatalf("complete failed: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "completed: "+id) {
		t.Errorf("complete result = %q", resultText(t, res))
	}

	res = callTool(t, s, "delete_reminder", map[string]any{"id": id})
	if res.IsError {
		t.Fatalf("delete failed: %s", resultText(t, res))
	}

	res = callTool(t, s, "get_reminder", map[string]any{"id": id})
	if !res.IsError {
		t.Error("expected error reading a deleted reminder")
	}
}

func TestGetReminderContract(t *testing.T) {
	s := testServer(t)
	res := callTool(t, s, "get_reminder_contract", nil)
	text := resultText(t, res)
	if !strings.Contains(text, "scheduledAt") || !strings.Contains(text, "timezone") {
		t.Errorf("contract looks wrong: %q", text)
	}
}
