package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/notes"
	"github.com/jun/notesync/internal/workspace"
)

// SearchHandler handles search requests.
type SearchHandler struct {
	registry  *workspace.Registry
	jwtSecret string
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(reg *workspace.Registry, jwtSecret string) *SearchHandler {
	return &SearchHandler{
		registry:  reg,
		jwtSecret: jwtSecret,
	}
}

// Search handles GET /search
func (h *SearchHandler) Search(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}

	query := strings.TrimSpace(req.QueryStringParameters["q"])
	if query == "" {
		return badRequest("Query parameter 'q' is required"), nil
	}

	results := ws.Notes.Find(notes.Query{Text: query})
	if results == nil {
		results = []model.Note{}
	}
	return jsonResponse(http.StatusOK, results), nil
}
