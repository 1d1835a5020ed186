package crypto

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const mockPrefix = "mock:"

// MockEncryptor stands in for KMS in DEV_MODE. The ciphertext is base64 of the
// owner and the token, so it keeps the per-user binding but is not secret.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(ctx context.Context, userID, plaintext string) (string, error) {
	return mockPrefix + base64.StdEncoding.EncodeToString([]byte(userID+"\x00"+plaintext)), nil
}

func (m *MockEncryptor) Decrypt(ctx context.Context, userID, ciphertext string) (string, error) {
	encoded, ok := strings.CutPrefix(ciphertext, mockPrefix)
	if !ok {
		return "", fmt.Errorf("not a mock ciphertext")
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode token ciphertext: %w", err)
	}
	owner, plain, ok := strings.Cut(string(sealed), "\x00")
	if !ok || owner != userID {
		return "", fmt.Errorf("token was not sealed for %s", userID)
	}
	return plain, nil
}
