package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solstice-io/solstice/internal/api"
	"github.com/solstice-io/solstice/internal/reminderservice"
	"github.com/solstice-io/solstice/internal/syncengine"
	"github.com/solstice-io/solstice/internal/testutil"
)

func testServer(t *testing.T, authEnabled bool, secret string) *httptest.Server {
	t.Helper()
	db := testutil.TestStore(t)
	svc := reminderservice.NewService(db, nil, nil)
	eng := syncengine.New(db, nil)
	srv := httptest.NewServer(api.NewRouter(svc, eng, authEnabled, secret, nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, user string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSyncEndpoint(t *testing.T) {
	srv := testServer(t, false, "")

	body := map[string]any{
		"clientId": "phone-1",
		"changes": []map[string]any{{
			"clientId":        "a1",
			"operation":       "insert",
			"clientUpdatedAt": time.Now().UTC().Format(time.RFC3339Nano),
			"data": map[string]any{
				"title":       "Buy milk",
				"scheduledAt": "2024-07-01",
				"timezone":    "America/Chicago",
			},
		}},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/reminders/sync?timezone=America/Chicago", "", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Success bool              `json:"success"`
		Data    syncengine.Result `json:"data"`
	}
	decodeBody(t, resp, &out)
	if !out.Success {
		t.Error("success = false")
	}
	if len(out.Data.AppliedChanges) != 1 {
		t.Fatalf("appliedChanges = %+v", out.Data.AppliedChanges)
	}
	ack := out.Data.AppliedChanges[0]
	if ack.ClientID != "a1" || ack.ServerID == "" || ack.Operation != "insert" {
		t.Errorf("ack = %+v", ack)
	}
	if out.Data.Conflicts == nil || len(out.Data.Conflicts) != 0 {
		t.Errorf("conflicts = %+v, want empty array", out.Data.Conflicts)
	}
	if len(out.Data.ServerChanges) != 1 {
		t.Fatalf("serverChanges = %+v", out.Data.ServerChanges)
	}
	sc := out.Data.ServerChanges[0]
	if sc.Title != "Buy milk" {
		t.Errorf("serverChanges[0].title = %q", sc.Title)
	}
	// Midnight Chicago projected back into the requesting zone.
	if sc.Localized.LocalDate != "2024-07-01" || sc.Localized.LocalTime != "00:00" {
		t.Errorf("localized = %+v", sc.Localized)
	}
}

func TestSyncRejectsMalformedJSON(t *testing.T) {
	srv := testServer(t, false, "")

	resp, err := http.Post(srv.URL+"/reminders/sync", "application/json",
		bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSyncValidationError(t *testing.T) {
	srv := testServer(t, false, "")

	// Missing clientId.
	resp := doJSON(t, http.MethodPost, srv.URL+"/reminders/sync", "", map[string]any{})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	var out struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &out)
	if out.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestReminderCRUDFlow(t *testing.T) {
	srv := testServer(t, false, "")

	// Create.
	resp := doJSON(t, http.MethodPost, srv.URL+"/reminders", "", map[string]any{
		"title":       "dentist",
		"scheduledAt": "2024-08-20T09:30:00",
		"timezone":    "America/Chicago",
		"tags":        []string{"Health", "health", " appointment "},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created api.ReminderPayload
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if len(created.Tags) != 2 {
		t.Errorf("tags = %v, want normalized pair", created.Tags)
	}

	// Get with a timezone projection.
	resp = doJSON(t, http.MethodGet, srv.URL+"/reminders/"+created.ID+"?timezone=America/Chicago", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got api.ReminderPayload
	decodeBody(t, resp, &got)
	if got.Localized.LocalTime != "09:30" {
		t.Errorf("localized time = %q, want 09:30", got.Localized.LocalTime)
	}

	// Patch.
	resp = doJSON(t, http.MethodPatch, srv.URL+"/reminders/"+created.ID, "", map[string]any{
		"title":    "dentist (rescheduled)",
		"priority": "high",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	var patched api.ReminderPayload
	decodeBody(t, resp, &patched)
	if patched.Title != "dentist (rescheduled)" || patched.Priority != "high" {
		t.Errorf("patched = %+v", patched.Reminder)
	}

	// Complete.
	resp = doJSON(t, http.MethodPost, srv.URL+"/reminders/"+created.ID+"/complete", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}
	var completed api.ReminderPayload
	decodeBody(t, resp, &completed)
	if completed.Status != "completed" {
		t.Errorf("status = %q, want completed", completed.Status)
	}

	// Delete, then the record is gone from reads.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/reminders/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/reminders/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	srv := testServer(t, false, "")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"scheduledAt": "2024-08-20"}},
		{"missing scheduledAt", map[string]any{"title": "x"}},
		{"bad priority", map[string]any{"title": "x", "scheduledAt": "2024-08-20", "priority": "urgent"}},
		{"bad date", map[string]any{"title": "x", "scheduledAt": "someday"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/reminders", "", c.body)
			if resp.StatusCode != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", resp.StatusCode)
			}
		})
	}
}

func TestListScopedByUserHeader(t *testing.T) {
	srv := testServer(t, false, "")

	resp := doJSON(t, http.MethodPost, srv.URL+"/reminders", "alice", map[string]any{
		"title":       "alice's errand",
		"scheduledAt": "2024-08-20",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	var listing api.ReminderListResponse

	resp = doJSON(t, http.MethodGet, srv.URL+"/reminders", "alice", nil)
	decodeBody(t, resp, &listing)
	if listing.Total != 1 {
		t.Errorf("alice total = %d, want 1", listing.Total)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/reminders", "bob", nil)
	decodeBody(t, resp, &listing)
	if listing.Total != 0 {
		t.Errorf("bob total = %d, want 0", listing.Total)
	}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	srv := testServer(t, true, secret)

	// No token.
	resp, err := http.Get(srv.URL + "/reminders")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	// Token signed with the wrong secret.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "alice"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d, want 401", resp.StatusCode)
	}

	// Valid token: the subject becomes the owner.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "alice"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", resp.StatusCode)
	}

	// X-User-ID must be ignored in jwt mode: identity comes from the token.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/reminders", bytes.NewBufferString(
		`{"title":"jwt-owned","scheduledAt":"2024-08-20"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "alice"))
	req.Header.Set("X-User-ID", "mallory")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create with token: status = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "alice"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var listing api.ReminderListResponse
	decodeBody(t, resp, &listing)
	if listing.Total != 1 {
		t.Errorf("alice total = %d, want 1", listing.Total)
	}
}

func TestSyncConflictOverHTTP(t *testing.T) {
	srv := testServer(t, false, "")

	resp := doJSON(t, http.MethodPost, srv.URL+"/reminders", "", map[string]any{
		"title":       "server copy",
		"scheduledAt": "2024-08-20",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created api.ReminderPayload
	decodeBody(t, resp, &created)

	stale := created.UpdatedAt.Add(-time.Hour)
	resp = doJSON(t, http.MethodPost, srv.URL+"/reminders/sync", "", map[string]any{
		"clientId": "phone-1",
		"changes": []map[string]any{{
			"clientId":        "c1",
			"serverId":        created.ID,
			"operation":       "update",
			"clientUpdatedAt": stale.Format(time.RFC3339Nano),
			"data":            map[string]any{"title": "stale edit"},
		}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	var out struct {
		Success bool              `json:"success"`
		Data    syncengine.Result `json:"data"`
	}
	decodeBody(t, resp, &out)
	if len(out.Data.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want 1", out.Data.Conflicts)
	}
	conf := out.Data.Conflicts[0]
	if conf.Reason != "Server has newer changes" || conf.ServerState == nil {
		t.Errorf("conflict = %+v", conf)
	}
	if conf.ServerState.Title != "server copy" {
		t.Errorf("serverState.title = %q", conf.ServerState.Title)
	}
}

func TestHealthUnknownRoute(t *testing.T) {
	srv := testServer(t, false, "")
	resp, err := http.Get(fmt.Sprintf("%s/nope", srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
