package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/auth"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/workspace"
)

const (
	stateCookieName = "oauth_state"
	stateTTL        = 10 * time.Minute
	sessionTTL      = 24 * time.Hour
	demoSessionTTL  = 1 * time.Hour
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	authService *auth.AuthService
	registry    *workspace.Registry
	jwtSecret   string
	frontendURL string
	devMode     bool
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *auth.AuthService, reg *workspace.Registry, jwtSecret, frontendURL string, devMode bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: s,
		registry:    reg,
		jwtSecret:   jwtSecret,
		frontendURL: frontendURL,
		devMode:     devMode,
		log:         logger.With().Str("handler", "auth").Logger(),
	}
}

// Login initiates the Google OAuth2 flow. The state is echoed back in a cookie
// and checked on the callback.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	state := uuid.NewString()
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": h.authService.GenerateAuthURL(state),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie(stateCookieName, state, stateTTL, h.devMode)},
		},
	}, nil
}

// Callback handles the OAuth2 callback from Google.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	if code == "" {
		return badRequest("Missing code"), nil
	}
	state := req.QueryStringParameters["state"]
	if state == "" || state != getCookie(req, stateCookieName) {
		return badRequest("Invalid state"), nil
	}

	token, err := h.authService.ExchangeCode(ctx, code)
	if err != nil {
		h.log.Error().Err(err).Msg("code exchange failed")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to exchange code"}, nil
	}

	user, err := h.authService.FetchUser(ctx, token)
	if err != nil {
		h.log.Error().Err(err).Msg("user info lookup failed")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to get user info"}, nil
	}

	// Login still succeeds without a stored profile; GetUser falls back to the token claims.
	if err := h.authService.SaveUser(ctx, *user, token); err != nil {
		h.log.Error().Err(err).Str("user_id", user.UID).Msg("failed to save user profile")
	}

	return h.startSession(*user, sessionTTL, fmt.Sprintf("%s/?success=true", h.frontendURL))
}

// DemoLogin signs in a throwaway user whose notes live in memory only.
func (h *AuthHandler) DemoLogin(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user := model.User{
		UID:         adapter.DemoUserPrefix + uuid.NewString(),
		Email:       "demo@notesync.local",
		DisplayName: "Demo User",
	}

	if err := h.authService.SaveUser(ctx, user, nil); err != nil {
		h.log.Error().Err(err).Str("user_id", user.UID).Msg("failed to save demo user")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to create demo user"}, nil
	}

	ws, err := h.registry.Open(ctx, &user)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.UID).Msg("failed to open demo workspace")
		return errorResponse(err), nil
	}
	for _, n := range welcomeNotes {
		if _, err := ws.Notes.CreateNote(ctx, n); err != nil {
			// One missing welcome note does not block the demo.
			h.log.Warn().Err(err).Str("title", n.Title).Msg("failed to create welcome note")
		}
	}

	return h.startSession(user, demoSessionTTL, fmt.Sprintf("%s/?demo=true", h.frontendURL))
}

// Logout clears the session cookie and drops the user's cached state.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if user, err := GetUser(req, h.jwtSecret); err == nil {
		if err := h.registry.Close(ctx, user.UID); err != nil {
			h.log.Warn().Err(err).Str("user_id", user.UID).Msg("failed to close workspace")
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success":true}`,
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {sessionCookie("", 0, h.devMode)},
		},
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

// GetUser returns the current user's profile.
func (h *AuthHandler) GetUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	user, err := GetUser(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	profile, err := h.authService.GetProfile(ctx, user.UID)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		profile = &model.UserProfile{UserID: user.UID, Email: user.Email, DisplayName: user.DisplayName}
	case err != nil:
		h.log.Error().Err(err).Str("user_id", user.UID).Msg("failed to get user profile")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to get user profile"}, nil
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"id":    profile.UserID,
		"email": profile.Email,
		"name":  profile.DisplayName,
		"demo":  adapter.IsDemoUser(profile.UserID),
	}), nil
}

func (h *AuthHandler) startSession(user model.User, ttl time.Duration, location string) (events.APIGatewayProxyResponse, error) {
	signed, err := signSessionToken(h.jwtSecret, user, ttl)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to sign token"}, nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": location,
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {
				sessionCookie(signed, ttl, h.devMode),
				cookie(stateCookieName, "", 0, h.devMode),
			},
		},
	}, nil
}

var welcomeNotes = []model.NoteInput{
	{
		Title:  "Welcome to notesync!",
		Folder: "Personal",
		Tags:   []string{"Important"},
		Content: `# Welcome to notesync!

This demo keeps your notes in memory for one hour. Nothing you write here is stored permanently.

## Try it out
- [x] Open the demo
- [ ] Move this note to another folder
- [ ] Rename the **Todo** tag and watch every tagged note follow
- [ ] Delete a folder: its notes stay, they just lose the folder

## Markdown
Notes are written in Markdown. **Bold**, *italic*, ~~strikethrough~~ and ` + "`" + `code` + "`" + ` work,
and so do tables:

| Feature | Status |
| :--- | :--- |
| Folders | Active |
| Tags | Active |
| Search | Active |
`,
	},
	{
		Title:  "Getting organized",
		Folder: "Work",
		Tags:   []string{"Todo", "Project"},
		Content: `# Getting organized

Each note lives in at most one folder. Tags can be combined: filter by several tags to
find the notes that carry all of them.

` + "```go" + `
package main

import "fmt"

func main() {
    fmt.Println("Hello, notesync!")
}
` + "```" + `
`,
	},
	{
		Title:  "ようこそ!",
		Folder: "Personal",
		Content: `# notesync へようこそ！

このデモでは、ノートは 1 時間だけメモリ上に保存されます。

- フォルダーでノートを整理
- タグを組み合わせて検索
- タグ名を変更すると、すべてのノートに反映されます
`,
	},
}
