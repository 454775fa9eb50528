// Package storage models the durable key-value capability the sync
// subsystem persists its state through. The core logic depends only on the
// KV interface so it stays testable with fakes and portable across runtimes.
package storage

import (
	"context"
	"errors"
)

// Well-known keys used by the sync subsystem.
const (
	KeyPendingOperations  = "pending_operations"
	KeyCachedAppointments = "cached_appointments"
	KeyResolvedEndpoint   = "resolved_endpoint"
	KeyAuthToken          = "auth_token"
)

// ErrNotFound is returned by Get when the key has never been written or was
// deleted.
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable key-value store. Values are opaque bytes; callers own the
// encoding.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
