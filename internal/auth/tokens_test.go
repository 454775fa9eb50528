package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/telemed-sync/internal/storage"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTokenStore(storage.NewRedisKV(client, "test:"), logging.New("error"))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	raw, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := signedToken(t, time.Now().Add(time.Hour))
	if err := s.Save(ctx, raw); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Token(ctx)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != raw {
		t.Fatal("stored token does not round-trip")
	}
}

func TestTokenMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestExpiredTokenIsInvalidated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, signedToken(t, time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Token(ctx); !errors.Is(err, ErrCredentialExpired) {
		t.Fatalf("expected ErrCredentialExpired, got %v", err)
	}
	// The expired credential is gone; the next read reports no credential.
	if _, err := s.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential after invalidation, got %v", err)
	}
}

func TestOpaqueTokenPassesThrough(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "opaque-session-key"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Token(ctx)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "opaque-session-key" {
		t.Fatalf("unexpected token %q", got)
	}
}

func TestInvalidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, signedToken(t, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := s.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
