// Package auth implements the machine token gate.
//
// The gate is a one-slot credential with an explicit state machine:
// Unconfigured until the first Setup call, Configured forever after. The
// only path to a different token is an authenticated Reset. There is no
// recovery for a lost token; clearing the store out-of-band is the
// intended escape hatch.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sentinel errors returned by Gate operations.
var (
	// ErrAlreadyConfigured is returned by Setup once a token exists.
	ErrAlreadyConfigured = errors.New("auth: already configured")

	// ErrNotConfigured is returned by Verify before any token exists.
	ErrNotConfigured = errors.New("auth: not configured")

	// ErrUnauthorized is returned when a presented token does not match.
	ErrUnauthorized = errors.New("auth: unauthorized")
)

// Gate validates presented tokens against the token store and enforces
// configure-once semantics.
type Gate struct {
	store  TokenStore
	logger *slog.Logger

	// mu serializes Setup and Reset so only one caller can mint a token
	// from any given state.
	mu sync.Mutex
}

// NewGate creates a new token gate.
func NewGate(store TokenStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:  store,
		logger: logger,
	}
}

// Status reports whether a machine token has been configured.
type Status struct {
	Configured bool `json:"configured"`
}

// Status returns the gate's current state.
func (g *Gate) Status(ctx context.Context) (Status, error) {
	_, err := g.store.GetToken(ctx)
	if errors.Is(err, ErrNoToken) {
		return Status{Configured: false}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("auth: read token: %w", err)
	}
	return Status{Configured: true}, nil
}

// Setup generates and persists the machine token. It succeeds only from
// the Unconfigured state; every later call fails with ErrAlreadyConfigured.
func (g *Gate) Setup(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.store.GetToken(ctx)
	if err == nil {
		return "", ErrAlreadyConfigured
	}
	if !errors.Is(err, ErrNoToken) {
		return "", fmt.Errorf("auth: read token: %w", err)
	}

	token := GenerateToken()
	if err := g.store.SetToken(ctx, token); err != nil {
		return "", fmt.Errorf("auth: persist token: %w", err)
	}

	g.logger.InfoContext(ctx, "machine token configured")
	return token, nil
}

// Verify compares a presented token against the stored token.
func (g *Gate) Verify(ctx context.Context, token string) error {
	current, err := g.store.GetToken(ctx)
	if errors.Is(err, ErrNoToken) {
		return ErrNotConfigured
	}
	if err != nil {
		return fmt.Errorf("auth: read token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Reset rotates the machine token. The caller must present the current
// token; this is the only path to a new token.
func (g *Gate) Reset(ctx context.Context, currentToken string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.Verify(ctx, currentToken); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	token := GenerateToken()
	if err := g.store.SetToken(ctx, token); err != nil {
		return "", fmt.Errorf("auth: persist token: %w", err)
	}

	g.logger.InfoContext(ctx, "machine token rotated")
	return token, nil
}
