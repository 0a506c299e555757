package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solstice-io/solstice/internal/reminderservice"
	"github.com/solstice-io/solstice/internal/sse"
	"github.com/solstice-io/solstice/internal/syncengine"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether JWT auth is enforced; secret is the HS256
// signing secret. broker, if non-nil, backs the SSE endpoint and receives
// sync change events.
func NewRouter(svc *reminderservice.Service, engine *syncengine.Engine, authEnabled bool, secret string, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, engine, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, secret))

	// Offline sync.
	r.Post("/reminders/sync", h.Sync)

	// Reminders CRUD.
	r.Get("/reminders", h.ListReminders)
	r.Post("/reminders", h.CreateReminder)
	r.Get("/reminders/{id}", h.GetReminder)
	r.Patch("/reminders/{id}", h.PatchReminder)
	r.Post("/reminders/{id}/complete", h.CompleteReminder)
	r.Delete("/reminders/{id}", h.DeleteReminder)

	// SSE endpoint (protected by the same auth middleware).
	if broker != nil {
		r.Get("/events", http.HandlerFunc(broker.ServeHTTP))
	}

	return r
}
