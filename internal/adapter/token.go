package adapter

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// tokenBytes is the entropy per issued token; 32 bytes keeps tokens
// unguessable even across the lifetime of the installation
const tokenBytes = 32

// TokenSource defines an interface for generating opaque credential strings
//
//go:generate mockgen -source=token.go -destination=../mocks/token.go -package=mocks -mock_names=TokenSource=MockTokenSource
type TokenSource interface {
	NewToken() (string, error)
}

// RandomTokenSource implements TokenSource with crypto/rand
type RandomTokenSource struct{}

// NewTokenSource creates a token source backed by the OS CSPRNG
func NewTokenSource() TokenSource {
	return &RandomTokenSource{}
}

func (s *RandomTokenSource) NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
