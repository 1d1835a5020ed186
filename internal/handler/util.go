package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jun/notesync/internal/adapter"
	"github.com/jun/notesync/internal/model"
	"github.com/jun/notesync/internal/notes"
	"github.com/jun/notesync/internal/workspace"
)

const sessionCookieName = "session_token"

// GetUser extracts the signed-in user from the Authorization header or session cookie.
func GetUser(req events.APIGatewayProxyRequest, jwtSecret string) (*model.User, error) {
	tokenString := ""
	if authHeader := getHeader(req, "Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if tokenString == "" {
		tokenString = getCookie(req, sessionCookieName)
	}
	if tokenString == "" {
		return nil, fmt.Errorf("no authorization token found")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &model.User{UID: sub, Email: email, DisplayName: name}, nil
}

// signSessionToken issues the JWT carried in the session cookie.
func signSessionToken(jwtSecret string, user model.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.UID,
		"email": user.Email,
		"name":  user.DisplayName,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func sessionCookie(value string, maxAge time.Duration, devMode bool) string {
	return cookie(sessionCookieName, value, maxAge, devMode)
}

// cookie formats a Set-Cookie value. Production frontends are served cross-site
// through CloudFront, which needs SameSite=None.
func cookie(name, value string, maxAge time.Duration, devMode bool) string {
	sameSite := "None"
	if devMode {
		sameSite = "Lax"
	}
	return fmt.Sprintf("%s=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s; Secure",
		name, value, int(maxAge.Seconds()), sameSite)
}

func getHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// getCookie reads one cookie from a "a=1; b=2" Cookie header.
func getCookie(req events.APIGatewayProxyRequest, name string) string {
	for _, part := range strings.Split(getHeader(req, "Cookie"), ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, name+"="); ok {
			return v
		}
	}
	return ""
}

// openWorkspace authenticates the request and returns the caller's workspace.
func openWorkspace(ctx context.Context, reg *workspace.Registry, req events.APIGatewayProxyRequest, jwtSecret string) (*workspace.Workspace, error) {
	user, err := GetUser(req, jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notes.ErrUnauthenticated, err)
	}
	return reg.Open(ctx, user)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var verr *notes.ValidationError
	switch {
	case errors.Is(err, notes.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &verr), errors.Is(err, adapter.ErrLimitExceeded):
		return http.StatusBadRequest
	case errors.Is(err, adapter.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, notes.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse renders err with its mapped status. Internal errors are not echoed.
func errorResponse(err error) events.APIGatewayProxyResponse {
	status := errorStatus(err)
	msg := err.Error()
	switch status {
	case http.StatusUnauthorized:
		msg = "Unauthorized"
	case http.StatusInternalServerError:
		msg = "Internal Server Error"
	case http.StatusServiceUnavailable:
		msg = "Remote store unavailable"
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Body: msg}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to encode response"}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

func badRequest(msg string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: msg}
}
