package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/oauth2"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/jun/notesync/internal/crypto"
	"github.com/jun/notesync/internal/model"
)

// ErrUserNotFound is returned when no profile is stored for a user.
var ErrUserNotFound = errors.New("user not found")

// ProfileClient is the subset of the DynamoDB client used for the users table.
type ProfileClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AuthService handles the Google OAuth2 flow and the user profile table.
type AuthService struct {
	oauthConfig *oauth2.Config
	client      ProfileClient
	tableName   string
	encryptor   crypto.Encryptor

	// userinfoOptions are appended when calling the Google userinfo API.
	userinfoOptions []option.ClientOption

	// In-memory fallback when client is nil
	profiles map[string]model.UserProfile
	mu       sync.RWMutex
}

// NewAuthService creates a new AuthService.
// The oauthConfig should be constructed by the caller (e.g., from environment variables).
// A nil client keeps profiles in memory.
func NewAuthService(oauthConfig *oauth2.Config, client ProfileClient, tableName string, encryptor crypto.Encryptor) *AuthService {
	return &AuthService{
		oauthConfig: oauthConfig,
		client:      client,
		tableName:   tableName,
		encryptor:   encryptor,
		profiles:    make(map[string]model.UserProfile),
	}
}

// Config returns the OAuth2 config.
func (s *AuthService) Config() *oauth2.Config {
	return s.oauthConfig
}

// GenerateAuthURL returns the URL to redirect the user to for Google login.
func (s *AuthService) GenerateAuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges the authorization code for an access token.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthConfig.Exchange(ctx, code)
}

// FetchUser asks Google who the token belongs to.
func (s *AuthService) FetchUser(ctx context.Context, token *oauth2.Token) (*model.User, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, s.userinfoOptions...)
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	if info.Id == "" {
		return nil, fmt.Errorf("user info has no subject id")
	}

	return &model.User{UID: info.Id, Email: info.Email, DisplayName: info.Name}, nil
}

// SaveUser stores the user's profile. The refresh token, when present, is
// encrypted first; without one the previously stored token is kept.
func (s *AuthService) SaveUser(ctx context.Context, user model.User, token *oauth2.Token) error {
	profile := model.UserProfile{
		UserID:      user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		UpdatedAt:   time.Now().UTC(),
	}

	if token != nil && token.RefreshToken != "" {
		encrypted, err := s.encryptor.Encrypt(ctx, user.UID, token.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		profile.EncryptedRefreshToken = encrypted
	} else if existing, err := s.GetProfile(ctx, user.UID); err == nil {
		profile.EncryptedRefreshToken = existing.EncryptedRefreshToken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if s.client == nil {
		s.mu.Lock()
		s.profiles[user.UID] = profile
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal user profile: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save user profile to DynamoDB: %w", err)
	}
	return nil
}

// GetProfile retrieves the stored profile of a user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if s.client == nil {
		s.mu.RLock()
		p, ok := s.profiles[userID]
		s.mu.RUnlock()
		if !ok {
			return nil, ErrUserNotFound
		}
		return &p, nil
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, ErrUserNotFound
	}

	var profile model.UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user profile: %w", err)
	}
	return &profile, nil
}

// RefreshToken returns the decrypted refresh token of a user.
func (s *AuthService) RefreshToken(ctx context.Context, userID string) (string, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.EncryptedRefreshToken == "" {
		return "", fmt.Errorf("no refresh token stored for user %s", userID)
	}
	token, err := s.encryptor.Decrypt(ctx, userID, profile.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return token, nil
}
