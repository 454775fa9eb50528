// Package sync implements the appointment-status synchronization
// subsystem: the pending-operation queue, the appointment cache with its
// intent overlay, the drain engine, and the connectivity monitor.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/carebridge/telemed-sync/internal/appointments"
	"github.com/carebridge/telemed-sync/internal/storage"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

// PendingOperation is a recorded, not-yet-confirmed intent to change one
// appointment's status.
type PendingOperation struct {
	AppointmentID string              `json:"id"`
	Status        appointments.Status `json:"status"`
	RecordedAt    time.Time           `json:"timestamp"`
}

// Queue is the durable, deduplicated list of unconfirmed status changes.
// It holds at most one operation per appointment: enqueuing a new desired
// status for an already-queued appointment overwrites the prior entry
// (last-intent-wins).
type Queue struct {
	store  storage.KV
	logger *logging.Logger
	now    func() time.Time

	ops map[string]PendingOperation
}

// NewQueue creates an empty queue over the given durable storage. Call
// Load before first use to restore persisted operations.
func NewQueue(store storage.KV, logger *logging.Logger) *Queue {
	if store == nil {
		panic("sync: queue requires storage")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{
		store:  store,
		logger: logger,
		now:    time.Now,
		ops:    make(map[string]PendingOperation),
	}
}

// Load reconciles the in-memory queue with the durable copy. A missing or
// corrupt record is not fatal: the queue starts empty.
func (q *Queue) Load(ctx context.Context) {
	data, err := q.store.Get(ctx, storage.KeyPendingOperations)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			q.logger.Warn("could not load pending operations, starting empty", "error", err)
		}
		return
	}
	var ops []PendingOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		q.logger.Warn("pending operations record is corrupt, starting empty", "error", err)
		return
	}
	for _, op := range ops {
		if op.AppointmentID == "" {
			continue
		}
		q.ops[op.AppointmentID] = op
	}
	if len(q.ops) > 0 {
		q.logger.Info("restored pending operations", "count", len(q.ops))
	}
}

// Enqueue records the intent to move an appointment to the desired status
// and persists the queue. A failed durable write is logged but does not
// abort the enqueue: the in-memory intent survives for this session.
func (q *Queue) Enqueue(ctx context.Context, id string, status appointments.Status) {
	q.ops[id] = PendingOperation{
		AppointmentID: id,
		Status:        status,
		RecordedAt:    q.now().UTC(),
	}
	q.persist(ctx)
	q.logger.Info("queued status change for later sync", "appointment_id", id, "status", status)
}

// Remove deletes a confirmed or abandoned operation and persists.
func (q *Queue) Remove(ctx context.Context, id string) {
	if _, ok := q.ops[id]; !ok {
		return
	}
	delete(q.ops, id)
	q.persist(ctx)
}

// ListOrderedByTimestamp returns a snapshot of all pending operations,
// oldest intent first.
func (q *Queue) ListOrderedByTimestamp() []PendingOperation {
	ops := make([]PendingOperation, 0, len(q.ops))
	for _, op := range q.ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if !ops[i].RecordedAt.Equal(ops[j].RecordedAt) {
			return ops[i].RecordedAt.Before(ops[j].RecordedAt)
		}
		return ops[i].AppointmentID < ops[j].AppointmentID
	})
	return ops
}

// DesiredStatus returns the queued intent for an appointment, if any. The
// cache overlay reads through this.
func (q *Queue) DesiredStatus(id string) (appointments.Status, bool) {
	op, ok := q.ops[id]
	if !ok {
		return "", false
	}
	return op.Status, true
}

// IsEmpty reports whether any operations are waiting to sync.
func (q *Queue) IsEmpty() bool { return len(q.ops) == 0 }

// Len returns the number of pending operations.
func (q *Queue) Len() int { return len(q.ops) }

func (q *Queue) persist(ctx context.Context) {
	data, err := json.Marshal(q.ListOrderedByTimestamp())
	if err == nil {
		err = q.store.Set(ctx, storage.KeyPendingOperations, data)
	}
	if err != nil {
		q.logger.Error("could not persist pending operations", "error", err, "count", len(q.ops))
	}
}
