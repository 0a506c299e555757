// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Solstice reminder tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/reminderservice"
	"github.com/solstice-io/solstice/internal/store"
)

// localOwner scopes MCP operations: the stdio transport is a local,
// single-user surface and matches the disabled-auth REST default.
const localOwner = "local"

// Server wraps the MCP server with Solstice tools.
type Server struct {
	mcp *server.MCPServer
	svc *reminderservice.Service
}

// New creates a new MCP server with all Solstice tools registered.
func New(db store.ReminderStore) *Server {
	s := &Server{svc: reminderservice.NewService(db, slog.Default(), nil)}

	s.mcp = server.NewMCPServer(
		"Solstice",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_reminders",
		mcp.WithDescription("List reminders, optionally filtered by status, category, tag, or priority."),
		mcp.WithString("status", mcp.Description("Filter: pending, completed, or cancelled")),
		mcp.WithString("category", mcp.Description("Filter by category")),
		mcp.WithString("tag", mcp.Description("Filter by tag")),
		mcp.WithString("priority", mcp.Description("Filter: low, medium, high, or critical")),
	), s.listReminders)

	s.mcp.AddTool(mcp.NewTool("get_reminder",
		mcp.WithDescription("Read a single reminder by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Server-assigned reminder id")),
	), s.getReminder)

	s.mcp.AddTool(mcp.NewTool("create_reminder",
		mcp.WithDescription("Create a new reminder. The payload MUST follow the canonical "+
			"reminder format. Read the contract first via the get_reminder_contract tool "+
			"or the solstice://reminder-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
		mcp.WithString("scheduled_at", mcp.Required(), mcp.Description("Date (YYYY-MM-DD) or ISO-8601 date-time")),
		mcp.WithString("timezone", mcp.Description("IANA zone name, defaults to UTC")),
		mcp.WithString("category", mcp.Description("Category, defaults to general")),
		mcp.WithString("priority", mcp.Description("low, medium, high, or critical")),
	), s.createReminder)

	s.mcp.AddTool(mcp.NewTool("complete_reminder",
		mcp.WithDescription("Mark a reminder completed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Server-assigned reminder id")),
	), s.completeReminder)

	s.mcp.AddTool(mcp.NewTool("delete_reminder",
		mcp.WithDescription("Soft-delete a reminder so the deletion syncs to other devices."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Server-assigned reminder id")),
	), s.deleteReminder)

	s.mcp.AddTool(mcp.NewTool("get_reminder_contract",
		mcp.WithDescription("Returns the canonical Solstice reminder format contract. "+
			"Call this before creating reminders to ensure correct structure."),
	), s.getReminderContract)

	// Resource: reminder format contract.
	s.mcp.AddResource(
		mcp.NewResource("solstice://reminder-format", "Reminder Format Contract",
			mcp.WithResourceDescription("Canonical reminder payload format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReminderFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := reminderservice.ListParams{}
	if v, err := req.RequireString("status"); err == nil {
		params.Status = v
	}
	if v, err := req.RequireString("category"); err == nil {
		params.Category = v
	}
	if v, err := req.RequireString("tag"); err == nil {
		params.Tag = v
	}
	if v, err := req.RequireString("priority"); err == nil {
		params.Priority = v
	}
	items, _, err := s.svc.List(ctx, localOwner, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Get(ctx, localOwner, id, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scheduledAt, err := req.RequireString("scheduled_at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := reminderservice.CreateInput{
		Title:       title,
		ScheduledAt: scheduledAt,
		Priority:    models.PriorityMedium,
	}
	if v, err := req.RequireString("timezone"); err == nil {
		in.Timezone = v
	}
	if v, err := req.RequireString("category"); err == nil {
		in.Category = v
	}
	if v, err := req.RequireString("priority"); err == nil && v != "" {
		in.Priority = v
	}

	rec, err := s.svc.Create(ctx, localOwner, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", rec.ID)), nil
}

func (s *Server) completeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Complete(ctx, localOwner, id, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("completed: %s", rec.ID)), nil
}

func (s *Server) deleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, localOwner, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) getReminderContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ReminderFormatContract), nil
}

func (s *Server) readReminderFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "solstice://reminder-format",
			MIMEType: "text/markdown",
			Text:     ReminderFormatContract,
		},
	}, nil
}
