// Package auth holds the stored backend credential. Credential issuance is
// an external collaborator; this package only keeps the bearer token, drops
// it when the backend rejects it, and refuses to hand out tokens that are
// already past their expiry so doomed calls are never made.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carebridge/telemed-sync/internal/storage"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

var (
	// ErrNoCredential means no token is stored; the user must sign in.
	ErrNoCredential = errors.New("auth: no stored credential")
	// ErrCredentialExpired means the stored token's exp claim has passed.
	ErrCredentialExpired = errors.New("auth: stored credential expired")
)

// TokenStore persists the backend bearer token in durable storage.
type TokenStore struct {
	store  storage.KV
	logger *logging.Logger
	now    func() time.Time
}

// NewTokenStore creates a token store over the given durable storage.
func NewTokenStore(store storage.KV, logger *logging.Logger) *TokenStore {
	if store == nil {
		panic("auth: storage required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenStore{store: store, logger: logger, now: time.Now}
}

// Save stores a freshly issued token.
func (s *TokenStore) Save(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("auth: token is empty")
	}
	if err := s.store.Set(ctx, storage.KeyAuthToken, []byte(raw)); err != nil {
		return fmt.Errorf("auth: persist token: %w", err)
	}
	return nil
}

// Token returns the stored credential. Tokens whose exp claim has already
// passed are treated the same as a backend 401: invalidated locally.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	data, err := s.store.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("auth: load token: %w", err)
	}
	raw := string(data)
	if expired, exp := s.isExpired(raw); expired {
		s.logger.Warn("stored credential expired", "expired_at", exp)
		if err := s.Invalidate(ctx); err != nil {
			s.logger.Warn("could not clear expired credential", "error", err)
		}
		return "", ErrCredentialExpired
	}
	return raw, nil
}

// Invalidate drops the stored credential, forcing re-authentication.
func (s *TokenStore) Invalidate(ctx context.Context) error {
	if err := s.store.Delete(ctx, storage.KeyAuthToken); err != nil {
		return fmt.Errorf("auth: clear token: %w", err)
	}
	return nil
}

// isExpired inspects the exp claim without verifying the signature. The
// backend is the verifier of record; locally we only need to know whether
// sending the token can possibly succeed.
func (s *TokenStore) isExpired(raw string) (bool, time.Time) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		// Opaque (non-JWT) tokens carry no readable expiry; let the
		// backend judge them.
		return false, time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, time.Time{}
	}
	return exp.Before(s.now()), exp.Time
}
