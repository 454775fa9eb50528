package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"

	"github.com/carebridge/telemed-sync/internal/appointments"
	"github.com/carebridge/telemed-sync/internal/backend"
	"github.com/carebridge/telemed-sync/internal/observability/metrics"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

// StatusUpdater delivers one status mutation to the backend. Implemented
// by backend.Resolver.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status appointments.Status) (*appointments.Appointment, error)
}

// Fetcher retrieves the authoritative appointment list. Implemented by
// backend.Client.
type Fetcher interface {
	ListAppointments(ctx context.Context) ([]appointments.Appointment, error)
}

// CredentialInvalidator drops the stored credential after the backend
// rejects it. Implemented by auth.TokenStore.
type CredentialInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Outcome reports how a status-change request was satisfied.
type Outcome string

const (
	// OutcomeApplied means the backend acknowledged the change live.
	OutcomeApplied Outcome = "applied"
	// OutcomeQueued means the change was recorded for a later sync and
	// applied optimistically to the local cache.
	OutcomeQueued Outcome = "queued"
)

// DrainResult describes one drain pass.
type DrainResult struct {
	// Ran is false when a pass was already active and this trigger was
	// ignored.
	Ran       bool
	Drained   int
	Remaining int
	// Err is the failure that stopped the pass early, nil when the pass
	// processed its whole snapshot.
	Err error
}

// Engine owns the queue and cache and is the only writer to both. All
// public operations are serialized on one mutex, so state never changes
// underneath an in-flight pass; the draining flag additionally turns
// triggers received during an active pass into no-ops instead of letting
// them pile up behind the lock.
type Engine struct {
	resolver StatusUpdater
	fetcher  Fetcher
	queue    *Queue
	cache    *Cache
	creds    CredentialInvalidator
	logger   *logging.Logger
	metrics  *metrics.SyncMetrics

	mu       gosync.Mutex
	draining atomic.Bool
	offline  atomic.Bool
}

// EngineConfig wires an Engine. Resolver, Fetcher, Queue and Cache are
// required; Creds and Metrics are optional.
type EngineConfig struct {
	Resolver StatusUpdater
	Fetcher  Fetcher
	Queue    *Queue
	Cache    *Cache
	Creds    CredentialInvalidator
	Logger   *logging.Logger
	Metrics  *metrics.SyncMetrics
}

// NewEngine constructs the sync engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Resolver == nil || cfg.Fetcher == nil {
		panic("sync: engine requires a resolver and a fetcher")
	}
	if cfg.Queue == nil || cfg.Cache == nil {
		panic("sync: engine requires a queue and a cache")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		resolver: cfg.Resolver,
		fetcher:  cfg.Fetcher,
		queue:    cfg.Queue,
		cache:    cfg.Cache,
		creds:    cfg.Creds,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// Init loads durable state. Call once at startup before serving requests.
func (e *Engine) Init(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Load(ctx)
	e.cache.Load(ctx)
	e.metrics.SetQueueDepth(e.queue.Len())
}

// ChangeStatus is the front door for a status mutation. It validates the
// lifecycle transition, attempts a live delivery, and on connectivity or
// endpoint failure records the intent for a later drain while updating the
// cache optimistically. Auth and validation failures are returned as-is
// and are never queued.
func (e *Engine) ChangeStatus(ctx context.Context, id string, status appointments.Status) (Outcome, error) {
	if id == "" {
		return "", &backend.Error{Class: backend.ClassValidation, Detail: "appointment id is required"}
	}
	if !status.Valid() {
		return "", &backend.Error{Class: backend.ClassValidation, Detail: "unknown status " + string(status)}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// The overlaid status is what the user sees, so it is also what the
	// transition rules apply to; a queued cancellation makes the
	// appointment terminal locally even before it syncs.
	if current, ok := e.cache.Get(id); ok {
		if err := appointments.ValidateTransition(current.Status, status); err != nil {
			return "", &backend.Error{Class: backend.ClassValidation, Detail: err.Error(), Err: err}
		}
	}

	appt, err := e.resolver.UpdateStatus(ctx, id, status)
	if err == nil {
		e.offline.Store(false)
		e.cache.Upsert(ctx, *appt)
		// Any queued intent for this appointment is superseded.
		e.queue.Remove(ctx, id)
		e.metrics.SetQueueDepth(e.queue.Len())
		e.logger.Info("status change applied", "appointment_id", id, "status", status)
		return OutcomeApplied, nil
	}

	if backend.IsAuthExpired(err) {
		e.invalidateCreds(ctx)
		return "", err
	}
	if backend.IsValidation(err) {
		return "", err
	}
	if backend.IsNetwork(err) {
		e.offline.Store(true)
	}
	e.logger.Warn("live status change failed, queuing",
		"appointment_id", id,
		"status", status,
		"error", err,
	)
	e.queue.Enqueue(ctx, id, status)
	e.cache.ApplyStatus(ctx, id, status)
	e.metrics.SetQueueDepth(e.queue.Len())
	return OutcomeQueued, nil
}

// Drain attempts to deliver all currently queued operations, oldest intent
// first, strictly sequentially. The first failure stops the pass and
// leaves the failed operation and everything behind it queued for the next
// trigger. A trigger received while a pass is active is ignored.
func (e *Engine) Drain(ctx context.Context) DrainResult {
	if !e.draining.CompareAndSwap(false, true) {
		e.logger.Debug("drain already in progress, ignoring trigger")
		return DrainResult{Ran: false}
	}
	defer e.draining.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.queue.ListOrderedByTimestamp()
	if len(snapshot) == 0 {
		return DrainResult{Ran: true}
	}
	e.logger.Info("drain pass started", "pending", len(snapshot))

	result := DrainResult{Ran: true}
	for _, op := range snapshot {
		appt, err := e.resolver.UpdateStatus(ctx, op.AppointmentID, op.Status)
		if err == nil {
			e.offline.Store(false)
			e.cache.Upsert(ctx, *appt)
			e.queue.Remove(ctx, op.AppointmentID)
			result.Drained++
			e.metrics.ObserveDrainedOp()
			continue
		}
		if backend.IsAuthExpired(err) {
			e.invalidateCreds(ctx)
		}
		if backend.IsValidation(err) {
			// This operation can never succeed; drop it so it cannot
			// wedge the queue head on every future pass.
			e.logger.Error("dropping permanently invalid pending operation",
				"appointment_id", op.AppointmentID,
				"status", op.Status,
				"error", err,
			)
			e.queue.Remove(ctx, op.AppointmentID)
		}
		if backend.IsNetwork(err) {
			e.offline.Store(true)
		}
		result.Err = err
		break
	}

	result.Remaining = e.queue.Len()
	e.metrics.SetQueueDepth(result.Remaining)
	if result.Err != nil {
		e.metrics.ObserveDrainPass("stopped")
		e.logger.Warn("drain pass stopped early",
			"drained", result.Drained,
			"remaining", result.Remaining,
			"error", result.Err,
		)
	} else {
		e.metrics.ObserveDrainPass("complete")
		e.logger.Info("drain pass complete", "drained", result.Drained)
	}
	return result
}

// Refresh replaces the cache with a fresh server fetch. Queued intents
// stay visible through the overlay even when the fetch returns stale data.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	appts, err := e.fetcher.ListAppointments(ctx)
	if err != nil {
		if backend.IsNetwork(err) {
			e.offline.Store(true)
		}
		return err
	}
	e.offline.Store(false)
	e.cache.ReplaceAll(ctx, appts)
	e.logger.Info("appointment cache refreshed", "count", len(appts))
	return nil
}

// TriggerManualSync runs a user-requested drain followed, when the drain
// completed cleanly, by a cache refresh.
func (e *Engine) TriggerManualSync(ctx context.Context) DrainResult {
	result := e.Drain(ctx)
	if result.Ran && result.Err == nil {
		if err := e.Refresh(ctx); err != nil {
			e.logger.Warn("post-sync refresh failed", "error", err)
		}
	}
	return result
}

// List returns the cached appointments with the overlay rule applied.
func (e *Engine) List() []appointments.Appointment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.List()
}

// Get returns one cached appointment with the overlay rule applied.
func (e *Engine) Get(id string) (appointments.Appointment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Get(id)
}

// IsOffline reports the degraded-mode signal for the UI layer.
func (e *Engine) IsOffline() bool { return e.offline.Load() }

// SetOffline records a connectivity transition observed by the monitor.
func (e *Engine) SetOffline(offline bool) { e.offline.Store(offline) }

// HasPendingSyncs reports whether unconfirmed status changes are waiting.
func (e *Engine) HasPendingSyncs() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.queue.IsEmpty()
}

func (e *Engine) invalidateCreds(ctx context.Context) {
	if e.creds == nil {
		return
	}
	if err := e.creds.Invalidate(ctx); err != nil {
		e.logger.Error("could not invalidate rejected credential", "error", err)
	} else {
		e.logger.Warn("credential rejected by backend, sign-in required")
	}
}
