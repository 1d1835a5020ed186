package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/markdown"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/notes"
	"github.com/jun/notesync/internal/workspace"
)

// NoteHandler handles CRUD operations for notes.
type NoteHandler struct {
	registry  *workspace.Registry
	renderer  *markdown.Renderer
	jwtSecret string
	log       zerolog.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(reg *workspace.Registry, renderer *markdown.Renderer, jwtSecret string, logger zerolog.Logger) *NoteHandler {
	return &NoteHandler{
		registry:  reg,
		renderer:  renderer,
		jwtSecret: jwtSecret,
		log:       logger.With().Str("handler", "notes").Logger(),
	}
}

// listResponse mirrors the synchronizer state.
type listResponse struct {
	Notes   []model.Note `json:"notes"`
	Loading bool         `json:"loading"`
	Error   *string      `json:"error"`
}

// ListNotes handles GET /notes. Optional filters: folder, tag (comma separated, all
// required), q (text). refresh=true reloads from the store first.
func (h *NoteHandler) ListNotes(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	params := req.QueryStringParameters
	if params["refresh"] == "true" {
		if err := ws.Reload(ctx); err != nil {
			h.log.Warn().Err(err).Msg("reload failed")
		}
	}

	state := ws.Notes.State()
	q := notes.Query{Folder: params["folder"], Text: params["q"]}
	if tags := params["tag"]; tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				q.Tags = append(q.Tags, tag)
			}
		}
	}

	resp := listResponse{Notes: []model.Note{}, Loading: state.Loading}
	for _, n := range state.Notes {
		if q.Matches(n) {
			resp.Notes = append(resp.Notes, n)
		}
	}
	if state.Err != nil {
		msg := http.StatusText(errorStatus(state.Err))
		resp.Error = &msg
	}
	return jsonResponse(http.StatusOK, resp), nil
}

// GetNote handles GET /notes/{id}.
func (h *NoteHandler) GetNote(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return badRequest("Missing note ID"), nil
	}
	note, ok := ws.Notes.Note(id)
	if !ok {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound, Body: "Note not found"}, nil
	}
	return jsonResponse(http.StatusOK, note), nil
}

// RenderNote handles GET /notes/{id}/html.
func (h *NoteHandler) RenderNote(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	note, ok := ws.Notes.Note(req.PathParameters["id"])
	if !ok {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound, Body: "Note not found"}, nil
	}
	out, err := h.renderer.RenderNote(note)
	if err != nil {
		h.log.Error().Err(err).Str("note_id", note.ID).Msg("render failed")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to render note"}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(out),
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}, nil
}

// CreateNote handles POST /notes.
func (h *NoteHandler) CreateNote(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	var input model.NoteInput
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return badRequest("Invalid request body"), nil
	}
	if err := validateText("title", &input.Title); err != nil {
		return errorResponse(err), nil
	}
	if err := validateText("content", &input.Content); err != nil {
		return errorResponse(err), nil
	}
	input.Folder = strings.TrimSpace(input.Folder)

	note, err := ws.Notes.CreateNote(ctx, input)
	if err != nil {
		h.log.Error().Err(err).Msg("create note failed")
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusCreated, note), nil
}

// UpdateNote handles PATCH and PUT /notes/{id}. Only the fields present in the
// body are changed.
func (h *NoteHandler) UpdateNote(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return badRequest("Missing note ID"), nil
	}

	var patch model.NotePatch
	if err := json.Unmarshal([]byte(req.Body), &patch); err != nil {
		return badRequest("Invalid request body"), nil
	}
	if patch.Empty() {
		return badRequest("No fields to update"), nil
	}
	if patch.Title != nil {
		if err := validateText("title", patch.Title); err != nil {
			return errorResponse(err), nil
		}
	}
	if patch.Content != nil {
		if err := validateText("content", patch.Content); err != nil {
			return errorResponse(err), nil
		}
	}
	if patch.Folder != nil {
		patch.Folder = model.String(strings.TrimSpace(*patch.Folder))
	}

	note, err := ws.Notes.UpdateNote(ctx, id, patch)
	if err != nil {
		h.log.Error().Err(err).Str("note_id", id).Msg("update note failed")
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, note), nil
}

// DeleteNote handles DELETE /notes/{id} and POST /notes/{id}/delete.
func (h *NoteHandler) DeleteNote(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return badRequest("Missing note ID"), nil
	}
	if err := ws.Notes.DeleteNote(ctx, id); err != nil {
		h.log.Error().Err(err).Str("note_id", id).Msg("delete note failed")
		return errorResponse(err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}

// validateText rejects blank values. The value itself is stored untrimmed.
func validateText(field string, value *string) error {
	if strings.TrimSpace(*value) == "" {
		return &notes.ValidationError{Field: field, Reason: "must not be blank"}
	}
	return nil
}
