// Package crypto seals the OAuth refresh tokens kept in user profiles.
// A sealed token is bound to the user it was issued for.
package crypto

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// contextKey names the KMS encryption context entry holding the owner's user ID.
const contextKey = "user_id"

// Encryptor seals and opens refresh tokens. Open fails for any user ID other
// than the one the token was sealed for.
type Encryptor interface {
	Encrypt(ctx context.Context, userID, plaintext string) (string, error)
	Decrypt(ctx context.Context, userID, ciphertext string) (string, error)
}

// KMSAPI is the subset of the KMS client used by KMSService.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSService seals tokens with a KMS key, using the user ID as encryption context.
type KMSService struct {
	client KMSAPI
	keyID  string
}

// NewKMSService creates a KMSService. keyID may be a key ID, ARN or alias.
func NewKMSService(client KMSAPI, keyID string) *KMSService {
	return &KMSService{client: client, keyID: keyID}
}

// Encrypt returns the base64 ciphertext of plaintext sealed for userID.
func (s *KMSService) Encrypt(ctx context.Context, userID, plaintext string) (string, error) {
	result, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(s.keyID),
		Plaintext:         []byte(plaintext),
		EncryptionContext: map[string]string{contextKey: userID},
	})
	if err != nil {
		return "", fmt.Errorf("encrypt token for %s: %w", userID, err)
	}
	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

func (s *KMSService) Decrypt(ctx context.Context, userID, ciphertext string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode token ciphertext: %w", err)
	}

	result, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    decoded,
		KeyId:             aws.String(s.keyID),
		EncryptionContext: map[string]string{contextKey: userID},
	})
	if err != nil {
		return "", fmt.Errorf("decrypt token for %s: %w", userID, err)
	}
	return string(result.Plaintext), nil
}
