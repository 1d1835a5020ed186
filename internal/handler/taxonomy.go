package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/taxonomy"
	"github.com/jun/notesync/internal/workspace"
)

// TaxonomyHandler handles the folder and tag lists.
type TaxonomyHandler struct {
	registry  *workspace.Registry
	jwtSecret string
	log       zerolog.Logger
}

// NewTaxonomyHandler creates a new TaxonomyHandler.
func NewTaxonomyHandler(reg *workspace.Registry, jwtSecret string, logger zerolog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		registry:  reg,
		jwtSecret: jwtSecret,
		log:       logger.With().Str("handler", "taxonomy").Logger(),
	}
}

type failedNote struct {
	NoteID string `json:"noteId"`
	Error  string `json:"error"`
}

type reportResponse struct {
	Kind    model.TaxonomyKind `json:"kind"`
	Op      string             `json:"op"`
	Name    string             `json:"name"`
	Updated []string           `json:"updated"`
	Failed  []failedNote       `json:"failed"`
	List    []string           `json:"list"`
}

func (h *TaxonomyHandler) ListFolders(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.list(ctx, req, model.KindFolder)
}

func (h *TaxonomyHandler) ListTags(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.list(ctx, req, model.KindTag)
}

func (h *TaxonomyHandler) AddFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.add(ctx, req, model.KindFolder)
}

func (h *TaxonomyHandler) AddTag(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.add(ctx, req, model.KindTag)
}

// RenameFolder handles PUT /folders/{name} with body {"name": "<new>"}.
func (h *TaxonomyHandler) RenameFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.rename(ctx, req, model.KindFolder)
}

// RenameTag handles PUT /tags/{name} with body {"name": "<new>"}.
func (h *TaxonomyHandler) RenameTag(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.rename(ctx, req, model.KindTag)
}

func (h *TaxonomyHandler) DeleteFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.remove(ctx, req, model.KindFolder)
}

func (h *TaxonomyHandler) DeleteTag(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.remove(ctx, req, model.KindTag)
}

func (h *TaxonomyHandler) list(ctx context.Context, req events.APIGatewayProxyRequest, kind model.TaxonomyKind) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, listOf(ws.Taxonomy, kind)), nil
}

func (h *TaxonomyHandler) add(ctx context.Context, req events.APIGatewayProxyRequest, kind model.TaxonomyKind) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}
	name, ok := nameFromBody(req)
	if !ok {
		return badRequest("Invalid request body"), nil
	}

	if kind == model.KindFolder {
		err = ws.Taxonomy.AddFolder(ctx, name)
	} else {
		err = ws.Taxonomy.AddTag(ctx, name)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("kind", string(kind)).Msg("add failed")
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusCreated, listOf(ws.Taxonomy, kind)), nil
}

func (h *TaxonomyHandler) rename(ctx context.Context, req events.APIGatewayProxyRequest, kind model.TaxonomyKind) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}
	oldName, ok := nameFromPath(req)
	if !ok {
		return badRequest("Missing name"), nil
	}
	newName, ok := nameFromBody(req)
	if !ok {
		return badRequest("Invalid request body"), nil
	}

	var report taxonomy.Report
	if kind == model.KindFolder {
		report, err = ws.Taxonomy.RenameFolder(ctx, oldName, newName)
	} else {
		report, err = ws.Taxonomy.RenameTag(ctx, oldName, newName)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("kind", string(kind)).Str("name", oldName).Msg("rename failed")
		return errorResponse(err), nil
	}
	return reportResult(report, listOf(ws.Taxonomy, kind)), nil
}

func (h *TaxonomyHandler) remove(ctx context.Context, req events.APIGatewayProxyRequest, kind model.TaxonomyKind) (events.APIGatewayProxyResponse, error) {
	ws, err := openWorkspace(ctx, h.registry, req, h.jwtSecret)
	if err != nil {
		return errorResponse(err), nil
	}
	name, ok := nameFromPath(req)
	if !ok {
		return badRequest("Missing name"), nil
	}

	var report taxonomy.Report
	if kind == model.KindFolder {
		report, err = ws.Taxonomy.DeleteFolder(ctx, name)
	} else {
		report, err = ws.Taxonomy.DeleteTag(ctx, name)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("kind", string(kind)).Str("name", name).Msg("delete failed")
		return errorResponse(err), nil
	}
	return reportResult(report, listOf(ws.Taxonomy, kind)), nil
}

// reportResult answers 207 when part of the cascade failed.
func reportResult(report taxonomy.Report, list []string) events.APIGatewayProxyResponse {
	resp := reportResponse{
		Kind:    report.Kind,
		Op:      report.Op,
		Name:    report.Name,
		Updated: []string{},
		Failed:  []failedNote{},
		List:    list,
	}
	resp.Updated = append(resp.Updated, report.Updated()...)
	for _, o := range report.Failed() {
		resp.Failed = append(resp.Failed, failedNote{NoteID: o.NoteID, Error: http.StatusText(errorStatus(o.Err))})
	}

	status := http.StatusOK
	if len(resp.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	return jsonResponse(status, resp)
}

func listOf(m *taxonomy.Manager, kind model.TaxonomyKind) []string {
	list := m.Tags()
	if kind == model.KindFolder {
		list = m.Folders()
	}
	if list == nil {
		list = []string{}
	}
	return list
}

func nameFromBody(req events.APIGatewayProxyRequest) (string, bool) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return "", false
	}
	return body.Name, true
}

// nameFromPath reads the {name} path parameter, which arrives URL-encoded.
func nameFromPath(req events.APIGatewayProxyRequest) (string, bool) {
	raw := req.PathParameters["name"]
	if raw == "" {
		return "", false
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return name, true
}
