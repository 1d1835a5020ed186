package handler_test

import (
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jun/notesync/internal/handler"
)

func TestGetUser_BearerToken(t *testing.T) {
	req := events.APIGatewayProxyRequest{
		Headers: map[string]string{
			"Authorization": "Bearer " + makeToken(testUserID),
		},
	}

	user, err := handler.GetUser(req, testJWTSecret)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.UID != testUserID {
		t.Errorf("Expected userID '%s', got '%s'", testUserID, user.UID)
	}
	if user.Email != testUserID+"@example.com" {
		t.Errorf("Expected email claim to be carried, got '%s'", user.Email)
	}
}

func TestGetUser_Cookie(t *testing.T) {
	req := events.APIGatewayProxyRequest{
		Headers: map[string]string{
			"Cookie": "theme=dark; session_token=" + makeToken(testUserID) + "; Path=/",
		},
	}

	user, err := handler.GetUser(req, testJWTSecret)
	if err != nil {
		t.Fatalf("GetUser from cookie failed: %v", err)
	}
	if user.UID != testUserID {
		t.Errorf("Expected userID '%s', got '%s'", testUserID, user.UID)
	}
}

func TestGetUser_CaseInsensitiveHeaders(t *testing.T) {
	req := events.APIGatewayProxyRequest{
		Headers: map[string]string{
			"authorization": "Bearer " + makeToken(testUserID), // lowercase
		},
	}

	user, err := handler.GetUser(req, testJWTSecret)
	if err != nil {
		t.Fatalf("GetUser with lowercase header failed: %v", err)
	}
	if user.UID != testUserID {
		t.Errorf("Expected userID '%s', got '%s'", testUserID, user.UID)
	}
}

func TestGetUser_Rejected(t *testing.T) {
	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}
		return signed
	}
	valid := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"No token", ""},
		{"Garbage", "invalid-jwt-token"},
		{"Expired", sign(jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{"sub": testUserID, "exp": time.Now().Add(-time.Hour).Unix()})},
		{"Wrong secret", sign(jwt.SigningMethodHS256, []byte("other-secret"), jwt.MapClaims{"sub": testUserID, "exp": valid})},
		{"Missing subject", sign(jwt.SigningMethodHS256, []byte(testJWTSecret), jwt.MapClaims{"exp": valid})},
		{"Unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": testUserID, "exp": valid})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.token != "" {
				headers["Authorization"] = "Bearer " + tc.token
			}
			if _, err := handler.GetUser(events.APIGatewayProxyRequest{Headers: headers}, testJWTSecret); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
