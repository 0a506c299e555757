package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solstice-io/solstice/internal/apperr"
	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/reminderservice"
	"github.com/solstice-io/solstice/internal/sse"
	"github.com/solstice-io/solstice/internal/syncengine"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *reminderservice.Service
	engine *syncengine.Engine
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil.
func NewHandler(svc *reminderservice.Service, engine *syncengine.Engine, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, engine: engine, broker: broker}
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := UserIDFromContext(r.Context())
	if !ok || id == "" {
		// Identity is resolved by the auth middleware; reaching here without
		// one is a systemic failure, not a client error.
		writeJSON(w, http.StatusInternalServerError, errorBody("could not resolve caller identity"))
		return "", false
	}
	return id, true
}

// Sync handles POST /reminders/sync: applies the client's offline changes
// in order, then returns the server-side delta since its watermark. The
// requesting timezone (for display projections) comes from the ?timezone
// query parameter; the body shape is fixed by the wire contract.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	zone := r.URL.Query().Get("timezone")

	result, err := h.engine.Sync(r.Context(), userID, zone, req)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		slog.Error("sync failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if h.broker != nil {
		for _, ac := range result.AppliedChanges {
			h.broker.PublishReminderEvent(eventKind(ac.Operation), ac.ServerID)
		}
	}
	writeData(w, http.StatusOK, result)
}

func eventKind(op string) string {
	switch op {
	case syncengine.OpInsert:
		return "created"
	case syncengine.OpDelete:
		return "deleted"
	default:
		return "updated"
	}
}

// ListReminders handles GET /reminders.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	params := reminderservice.ListParams{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Priority: q.Get("priority"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Timezone: q.Get("timezone"),
		Limit:    limit,
		Offset:   offset,
	}
	items, total, err := h.svc.List(r.Context(), userID, params)
	if err != nil {
		h.writeServiceError(w, err, "list reminders failed")
		return
	}
	writeJSON(w, http.StatusOK, ReminderListResponse{Reminders: items, Total: total})
}

// CreateReminder handles POST /reminders.
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Create(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err, "create reminder failed")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetReminder handles GET /reminders/{id}.
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"), r.URL.Query().Get("timezone"))
	if err != nil {
		h.writeServiceError(w, err, "get reminder failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// PatchReminder handles PATCH /reminders/{id}.
func (h *Handler) PatchReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var patch models.ChangePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), patch, r.URL.Query().Get("timezone"))
	if err != nil {
		h.writeServiceError(w, err, "patch reminder failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CompleteReminder handles POST /reminders/{id}/complete.
func (h *Handler) CompleteReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Complete(r.Context(), userID, chi.URLParam(r, "id"), r.URL.Query().Get("timezone"))
	if err != nil {
		h.writeServiceError(w, err, "complete reminder failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteReminder handles DELETE /reminders/{id} (soft delete).
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "delete reminder failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("reminder was modified concurrently"))
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrInvalidDate),
		errors.Is(err, apperr.ErrInvalidTimezone):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(logMsg, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
