package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// ErrNoToken is returned by a TokenStore when no machine token has been
// persisted yet.
var ErrNoToken = errors.New("auth: no token configured")

// TokenStore is the durable single-value store holding the machine token.
type TokenStore interface {
	// GetToken returns the stored machine token, or ErrNoToken if none
	// has been set.
	GetToken(ctx context.Context) (string, error)

	// SetToken persists the machine token, replacing any previous value.
	SetToken(ctx context.Context, token string) error
}

// GenerateToken creates a cryptographically random machine token.
// Format: "nxs_" + 32 bytes hex = 68 characters total.
func GenerateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("auth: failed to generate random token: " + err.Error())
	}
	return "nxs_" + hex.EncodeToString(b)
}
