package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/adapter/dynamo"
	"github.com/jun/notesync/internal/adapter/memory"
	"github.com/jun/notesync/internal/auth"
	"github.com/jun/notesync/internal/config"
	"github.com/jun/notesync/internal/crypto"
	"github.com/jun/notesync/internal/handler"
	"github.com/jun/notesync/internal/markdown"
	"github.com/jun/notesync/internal/secret"
	"github.com/jun/notesync/internal/workspace"
)

const devJWTSecret = "default-dev-secret"

// App holds the dependencies for the Lambda function.
type App struct {
	authHandler      *handler.AuthHandler
	noteHandler      *handler.NoteHandler
	taxonomyHandler  *handler.TaxonomyHandler
	searchHandler    *handler.SearchHandler
	registry         *workspace.Registry
	apiGatewaySecret string
	devMode          bool
	frontendURL      string
	log              zerolog.Logger
}

// deps are the collaborators NewApp builds from the environment.
type deps struct {
	notes      adapter.NoteStore
	taxonomies adapter.TaxonomyStore
	auth       *auth.AuthService
	jwtSecret  string
	apiSecret  string
}

// NewApp initializes the application dependencies.
// DEV_MODE keeps everything in process: memory stores, env secrets, mock encryption.
func NewApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	var (
		stores    adapter.Stores
		profiles  auth.ProfileClient
		encryptor crypto.Encryptor
		resolver  secret.Resolver
	)
	demo := memory.NewDemoStore()

	if cfg.DevMode {
		primary := memory.NewStore()
		stores = adapter.Stores{Notes: primary, Taxonomies: primary}
		encryptor = crypto.NewMockEncryptor()
		resolver = secret.NewEnvResolver()
		log.Info().Msg("DEV_MODE: using in-memory stores, mock encryptor and env secrets")
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		dynamoClient := dynamodb.NewFromConfig(awsCfg)
		stores = adapter.Stores{
			Notes:      dynamo.NewNoteStore(dynamoClient, cfg.NotesTable, cfg.NotesUserIndex),
			Taxonomies: dynamo.NewTaxonomyStore(dynamoClient, cfg.TaxonomyTable),
		}
		profiles = dynamoClient
		encryptor = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
	}

	hybrid := &adapter.Hybrid{
		Primary: stores,
		Demo:    adapter.Stores{Notes: demo, Taxonomies: demo},
	}

	secrets, err := secret.Load(ctx, resolver, secret.Params{
		GoogleClientSecret: cfg.GoogleClientSecretParam,
		JWTSecret:          cfg.JWTSecretParam,
		APIGatewaySecret:   cfg.APIGatewaySecretParam,
	})
	if err != nil {
		log.Warn().Err(err).Msg("some secrets could not be resolved")
	}
	jwtSecret := secrets.JWTSecret
	if jwtSecret == "" {
		if !cfg.DevMode {
			return nil, fmt.Errorf("jwt secret %q is required", cfg.JWTSecretParam)
		}
		jwtSecret = devJWTSecret
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: secrets.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}

	return newApp(cfg, deps{
		notes:      hybrid,
		taxonomies: hybrid,
		auth:       auth.NewAuthService(oauthConfig, profiles, cfg.UsersTable, encryptor),
		jwtSecret:  jwtSecret,
		apiSecret:  secrets.APIGatewaySecret,
	}, log), nil
}

func newApp(cfg config.Config, d deps, log zerolog.Logger) *App {
	registry := workspace.NewRegistry(d.notes, d.taxonomies, workspace.Options{
		StoreTimeout: cfg.StoreTimeout,
		Logger:       &log,
	})

	return &App{
		authHandler:      handler.NewAuthHandler(d.auth, registry, d.jwtSecret, cfg.FrontendURL, cfg.DevMode, log),
		noteHandler:      handler.NewNoteHandler(registry, markdown.NewRenderer(), d.jwtSecret, log),
		taxonomyHandler:  handler.NewTaxonomyHandler(registry, d.jwtSecret, log),
		searchHandler:    handler.NewSearchHandler(registry, d.jwtSecret),
		registry:         registry,
		apiGatewaySecret: d.apiSecret,
		devMode:          cfg.DevMode,
		frontendURL:      cfg.FrontendURL,
		log:              log,
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	method := req.HTTPMethod
	// Strip /api prefix if present (for CloudFront proxying)
	path := strings.TrimPrefix(req.Path, "/api")

	app.log.Debug().Str("method", method).Str("path", path).Msg("request")

	if method == http.MethodOptions {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}), nil
	}

	// Only CloudFront knows the origin secret.
	if !app.devMode {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			app.log.Warn().Str("path", path).Msg("blocked request without valid X-Origin-Verify header")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	h := app.route(method, path, req.PathParameters)
	if h == nil {
		return app.corsResponse(events.APIGatewayProxyResponse{
			StatusCode: http.StatusNotFound,
			Body:       fmt.Sprintf("Not Found: %s %s", method, path),
		}), nil
	}
	return app.corsResponse(app.must(h(ctx, req))), nil
}

type handlerFunc func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// route picks the handler for a request and fills the path parameters it needs.
func (app *App) route(method, path string, params map[string]string) handlerFunc {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "/auth/login" && method == http.MethodGet:
		return app.authHandler.Login
	case path == "/auth/callback" && method == http.MethodGet:
		return app.authHandler.Callback
	case path == "/auth/demo-login" && method == http.MethodGet:
		return app.authHandler.DemoLogin
	case path == "/auth/logout" && method == http.MethodPost:
		return app.authHandler.Logout
	case path == "/auth/user" && method == http.MethodGet:
		return app.authHandler.GetUser

	case path == "/search" && method == http.MethodGet:
		return app.searchHandler.Search
	}

	switch parts[0] {
	case "notes":
		return app.routeNotes(method, parts, params)
	case "folders":
		return app.routeTaxonomy(method, parts, params,
			app.taxonomyHandler.ListFolders, app.taxonomyHandler.AddFolder,
			app.taxonomyHandler.RenameFolder, app.taxonomyHandler.DeleteFolder)
	case "tags":
		return app.routeTaxonomy(method, parts, params,
			app.taxonomyHandler.ListTags, app.taxonomyHandler.AddTag,
			app.taxonomyHandler.RenameTag, app.taxonomyHandler.DeleteTag)
	}
	return nil
}

func (app *App) routeNotes(method string, parts []string, params map[string]string) handlerFunc {
	switch len(parts) {
	case 1:
		switch method {
		case http.MethodGet:
			return app.noteHandler.ListNotes
		case http.MethodPost:
			return app.noteHandler.CreateNote
		}
	case 2:
		params["id"] = parts[1]
		switch method {
		case http.MethodGet:
			return app.noteHandler.GetNote
		case http.MethodPatch, http.MethodPut:
			return app.noteHandler.UpdateNote
		case http.MethodDelete:
			return app.noteHandler.DeleteNote
		}
	case 3:
		params["id"] = parts[1]
		switch {
		case parts[2] == "html" && method == http.MethodGet:
			return app.noteHandler.RenderNote
		case parts[2] == "delete" && method == http.MethodPost:
			return app.noteHandler.DeleteNote
		}
	}
	return nil
}

func (app *App) routeTaxonomy(method string, parts []string, params map[string]string, list, add, rename, remove handlerFunc) handlerFunc {
	switch len(parts) {
	case 1:
		switch method {
		case http.MethodGet:
			return list
		case http.MethodPost:
			return add
		}
	case 2:
		params["name"] = parts[1]
		switch method {
		case http.MethodPut, http.MethodPatch:
			return rename
		case http.MethodDelete:
			return remove
		}
	}
	return nil
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.frontendURL
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS,PATCH"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, logging the error.
func (app *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		app.log.Error().Err(err).Msg("handler error")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
