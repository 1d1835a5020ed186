package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/adapter/memory"
	"github.com/jun/notesync/internal/handler"
	"github.com/jun/notesync/internal/markdown"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/workspace"
)

const (
	testJWTSecret = "test-secret"
	testUserID    = "test-user-123"
)

func makeToken(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(1 * time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte(testJWTSecret))
	return signed
}

func makeRequest(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Body:       body,
		Headers: map[string]string{
			"Authorization": "Bearer " + makeToken(testUserID),
			"Content-Type":  "application/json",
		},
		PathParameters:        map[string]string{},
		QueryStringParameters: map[string]string{},
	}
}

func newTestRegistry(t *testing.T) (*workspace.Registry, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	reg := workspace.NewRegistry(store, store, workspace.Options{})
	t.Cleanup(func() { reg.Close(context.Background(), testUserID) })
	return reg, store
}

func newNoteHandlerWith(reg *workspace.Registry) *handler.NoteHandler {
	return handler.NewNoteHandler(reg, markdown.NewRenderer(), testJWTSecret, zerolog.Nop())
}

func newNoteHandler(t *testing.T) (*handler.NoteHandler, *memory.Store) {
	reg, store := newTestRegistry(t)
	return newNoteHandlerWith(reg), store
}

type listBody struct {
	Notes   []model.Note `json:"notes"`
	Loading bool         `json:"loading"`
	Error   *string      `json:"error"`
}

func createNote(t *testing.T, h *handler.NoteHandler, body string) model.Note {
	t.Helper()
	resp, err := h.CreateNote(context.Background(), makeRequest("POST", "/notes", body))
	if err != nil {
		t.Fatalf("CreateNote returned error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 Created, got %d: %s", resp.StatusCode, resp.Body)
	}
	var note model.Note
	if err := json.Unmarshal([]byte(resp.Body), &note); err != nil {
		t.Fatalf("Failed to unmarshal created note: %v", err)
	}
	return note
}

func listNotes(t *testing.T, h *handler.NoteHandler, query map[string]string) listBody {
	t.Helper()
	req := makeRequest("GET", "/notes", "")
	req.QueryStringParameters = query
	resp, _ := h.ListNotes(context.Background(), req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 OK, got %d: %s", resp.StatusCode, resp.Body)
	}
	var body listBody
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("Failed to unmarshal list: %v", err)
	}
	return body
}

func TestNoteHandler_CreateAndList(t *testing.T) {
	h, _ := newNoteHandler(t)

	created := createNote(t, h, `{"title":"Groceries","content":"milk","folder":"Personal","tags":["Todo"]}`)
	if created.ID == "" {
		t.Error("Expected non-empty ID")
	}
	if created.UserID != testUserID {
		t.Errorf("Expected owner %q, got %q", testUserID, created.UserID)
	}

	body := listNotes(t, h, nil)
	if body.Loading || body.Error != nil {
		t.Errorf("Unexpected state flags: %+v", body)
	}
	if len(body.Notes) != 1 || body.Notes[0].Title != "Groceries" {
		t.Errorf("Unexpected notes: %+v", body.Notes)
	}
}

func TestNoteHandler_ListEmptyIsArray(t *testing.T) {
	h, _ := newNoteHandler(t)

	resp, _ := h.ListNotes(context.Background(), makeRequest("GET", "/notes", ""))
	if !strings.Contains(resp.Body, `"notes":[]`) {
		t.Errorf("Expected empty JSON array, got %s", resp.Body)
	}
}

func TestNoteHandler_ListFilters(t *testing.T) {
	h, _ := newNoteHandler(t)
	createNote(t, h, `{"title":"Plan","content":"quarterly goals","folder":"Work","tags":["Important","Project"]}`)
	createNote(t, h, `{"title":"Shopping","content":"eggs","folder":"Personal","tags":["Todo"]}`)
	createNote(t, h, `{"title":"Standup","content":"goals for today","folder":"Work"}`)

	tests := []struct {
		name  string
		query map[string]string
		want  int
	}{
		{"Folder", map[string]string{"folder": "Work"}, 2},
		{"Tag", map[string]string{"tag": "Todo"}, 1},
		{"All tags", map[string]string{"tag": "Important,Project"}, 1},
		{"Text", map[string]string{"q": "goals"}, 2},
		{"Combined", map[string]string{"folder": "Personal", "q": "goals"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := listNotes(t, h, tc.query); len(got.Notes) != tc.want {
				t.Errorf("Expected %d notes, got %d", tc.want, len(got.Notes))
			}
		})
	}
}

func TestNoteHandler_RefreshReloadsFromStore(t *testing.T) {
	h, store := newNoteHandler(t)
	createNote(t, h, `{"title":"a","content":"a"}`)

	// Simulate a write from another instance.
	records, _ := store.ListNotes(context.Background(), testUserID)
	store.DeleteNote(context.Background(), testUserID, records[0].ID)

	if got := listNotes(t, h, nil); len(got.Notes) != 1 {
		t.Fatalf("Expected cached note without refresh, got %d", len(got.Notes))
	}
	if got := listNotes(t, h, map[string]string{"refresh": "true"}); len(got.Notes) != 0 {
		t.Errorf("Expected refreshed collection to be empty, got %d", len(got.Notes))
	}
}

func TestNoteHandler_CreateValidation(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
	}{
		{"Invalid JSON", `{`},
		{"Missing title", `{"content":"c"}`},
		{"Blank title", `{"title":"   ","content":"c"}`},
		{"Blank content", `{"title":"t","content":"\n"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := h.CreateNote(ctx, makeRequest("POST", "/notes", tc.body))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", resp.StatusCode, resp.Body)
			}
		})
	}

	if got := listNotes(t, h, nil); len(got.Notes) != 0 {
		t.Errorf("Rejected input reached the collection: %+v", got.Notes)
	}
}

func TestNoteHandler_GetNote(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()
	created := createNote(t, h, `{"title":"t","content":"c"}`)

	req := makeRequest("GET", "/notes/"+created.ID, "")
	req.PathParameters["id"] = created.ID
	resp, _ := h.GetNote(ctx, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	req.PathParameters["id"] = "missing"
	resp, _ = h.GetNote(ctx, req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestNoteHandler_RenderNote(t *testing.T) {
	h, _ := newNoteHandler(t)
	created := createNote(t, h, `{"title":"Doc","content":"# Heading\n\n**bold**"}`)

	req := makeRequest("GET", "/notes/"+created.ID+"/html", "")
	req.PathParameters["id"] = created.ID
	resp, _ := h.RenderNote(context.Background(), req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Headers["Content-Type"], "text/html") {
		t.Errorf("Unexpected content type %q", resp.Headers["Content-Type"])
	}
	if !strings.Contains(resp.Body, "<strong>bold</strong>") {
		t.Errorf("Expected rendered markdown, got %s", resp.Body)
	}
}

func TestNoteHandler_PartialUpdate(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()
	created := createNote(t, h, `{"title":"orig","content":"orig","folder":"Work","tags":["Todo"]}`)

	patch := func(body string) model.Note {
		t.Helper()
		req := makeRequest("PATCH", "/notes/"+created.ID, body)
		req.PathParameters["id"] = created.ID
		resp, _ := h.UpdateNote(ctx, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
		}
		var n model.Note
		json.Unmarshal([]byte(resp.Body), &n)
		return n
	}

	patch(`{"title":"A"}`)
	got := patch(`{"content":"B"}`)
	if got.Title != "A" || got.Content != "B" || got.Folder != "Work" {
		t.Errorf("Partial updates clobbered fields: %+v", got)
	}

	got = patch(`{"folder":"","tags":[]}`)
	if got.Folder != "" || got.Tags != nil {
		t.Errorf("Expected folder and tags cleared, got %+v", got)
	}
}

func TestNoteHandler_UpdateErrors(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()
	created := createNote(t, h, `{"title":"t","content":"c"}`)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"Unknown ID", "missing", `{"title":"x"}`, http.StatusNotFound},
		{"Empty patch", created.ID, `{}`, http.StatusBadRequest},
		{"Blank title", created.ID, `{"title":" "}`, http.StatusBadRequest},
		{"Invalid JSON", created.ID, `nope`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := makeRequest("PUT", "/notes/"+tc.id, tc.body)
			req.PathParameters["id"] = tc.id
			resp, _ := h.UpdateNote(ctx, req)
			if resp.StatusCode != tc.want {
				t.Errorf("Expected %d, got %d: %s", tc.want, resp.StatusCode, resp.Body)
			}
		})
	}
}

func TestNoteHandler_Delete(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()
	created := createNote(t, h, `{"title":"t","content":"c"}`)

	req := makeRequest("DELETE", "/notes/"+created.ID, "")
	req.PathParameters["id"] = created.ID
	resp, _ := h.DeleteNote(ctx, req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", resp.StatusCode, resp.Body)
	}
	if got := listNotes(t, h, nil); len(got.Notes) != 0 {
		t.Errorf("Expected empty collection, got %+v", got.Notes)
	}

	resp, _ = h.DeleteNote(ctx, req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for second delete, got %d", resp.StatusCode)
	}
}

func TestNoteHandler_Unauthorized(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()

	req := makeRequest("GET", "/notes", "")
	req.Headers = map[string]string{}
	resp, _ := h.ListNotes(ctx, req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}

	req.Headers = map[string]string{"Authorization": "Bearer " + makeToken(testUserID)[:20]}
	resp, _ = h.CreateNote(ctx, req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a malformed token, got %d", resp.StatusCode)
	}
}

func TestNoteHandler_UsersAreIsolated(t *testing.T) {
	h, _ := newNoteHandler(t)
	ctx := context.Background()
	created := createNote(t, h, `{"title":"mine","content":"c"}`)

	other := makeRequest("GET", "/notes/"+created.ID, "")
	other.Headers["Authorization"] = "Bearer " + makeToken("intruder")
	other.PathParameters["id"] = created.ID
	resp, _ := h.GetNote(ctx, other)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's note, got %d", resp.StatusCode)
	}

	other.HTTPMethod = "DELETE"
	resp, _ = h.DeleteNote(ctx, other)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 deleting another user's note, got %d", resp.StatusCode)
	}
}
