package backend

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/carebridge/telemed-sync/internal/appointments"
	"github.com/carebridge/telemed-sync/internal/observability/metrics"
	"github.com/carebridge/telemed-sync/internal/storage"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

// Resolver discovers which request shape the backend accepts for a status
// mutation. The shape is runtime-discovered state: once a candidate
// succeeds it is cached and tried first on subsequent calls, and it is
// invalidated again the moment it fails for a network or endpoint reason.
type Resolver struct {
	client     *Client
	candidates []CandidateEndpoint
	store      storage.KV
	logger     *logging.Logger
	metrics    *metrics.SyncMetrics

	mu       sync.Mutex
	resolved *CandidateEndpoint
}

// ResolverConfig wires a Resolver. Client is required; Store persists the
// resolved shape across sessions as a best-effort hint and may be nil.
type ResolverConfig struct {
	Client     *Client
	Candidates []CandidateEndpoint
	Store      storage.KV
	Logger     *logging.Logger
	Metrics    *metrics.SyncMetrics
}

// NewResolver constructs a Resolver over the given transport.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Client == nil {
		panic("backend: resolver requires a client")
	}
	candidates := cfg.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		client:     cfg.Client,
		candidates: candidates,
		store:      cfg.Store,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Load restores a previously persisted resolved shape. The hint is not
// authoritative; it still has to succeed before it is trusted again, so a
// missing or corrupt record is not an error.
func (r *Resolver) Load(ctx context.Context) {
	if r.store == nil {
		return
	}
	data, err := r.store.Get(ctx, storage.KeyResolvedEndpoint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("could not load resolved endpoint hint", "error", err)
		}
		return
	}
	var ep CandidateEndpoint
	if err := json.Unmarshal(data, &ep); err != nil || ep.Method == "" || ep.PathTemplate == "" {
		r.logger.Warn("discarding corrupt resolved endpoint hint")
		return
	}
	r.mu.Lock()
	r.resolved = &ep
	r.mu.Unlock()
	r.logger.Info("restored resolved endpoint", "method", ep.Method, "path", ep.PathTemplate)
}

// Resolved returns a copy of the currently cached shape, if any.
func (r *Resolver) Resolved() *CandidateEndpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved == nil {
		return nil
	}
	ep := *r.resolved
	return &ep
}

// UpdateStatus delivers one status mutation, discovering a working request
// shape if necessary. It returns the acknowledged appointment or a
// classified error; when every candidate shape is rejected the error class
// is ClassEndpoint and it carries the last observed failure.
func (r *Resolver) UpdateStatus(ctx context.Context, id string, status appointments.Status) (*appointments.Appointment, error) {
	if resolved := r.Resolved(); resolved != nil {
		appt, err := r.client.attempt(ctx, *resolved, id, status)
		if err == nil {
			r.metrics.ObserveResolverAttempt("resolved_hit")
			return appt, nil
		}
		switch ClassOf(err) {
		case ClassAuth, ClassValidation:
			// The shape is not at fault; keep it.
			r.metrics.ObserveResolverAttempt("rejected")
			return nil, err
		case ClassServer:
			// Backend is broken, not the shape. Rescanning other shapes
			// against a failing server would only burn calls.
			r.metrics.ObserveResolverAttempt("server_error")
			return nil, err
		}
		r.logger.Warn("resolved endpoint failed, rescanning",
			"method", resolved.Method,
			"path", resolved.PathTemplate,
			"error", err,
		)
		r.invalidate(ctx)
	}
	return r.scan(ctx, id, status)
}

func (r *Resolver) scan(ctx context.Context, id string, status appointments.Status) (*appointments.Appointment, error) {
	r.metrics.ObserveEndpointRescan()
	var lastErr error
	for _, ep := range r.candidates {
		appt, err := r.client.attempt(ctx, ep, id, status)
		if err == nil {
			r.metrics.ObserveResolverAttempt("scan_hit")
			r.setResolved(ctx, ep)
			return appt, nil
		}
		switch ClassOf(err) {
		case ClassAuth, ClassValidation:
			// The request itself is bad; no other shape can fix that.
			r.metrics.ObserveResolverAttempt("rejected")
			return nil, err
		case ClassNetwork:
			// No response at all means the device is offline; every
			// remaining shape would time out the same way.
			r.metrics.ObserveResolverAttempt("offline")
			return nil, err
		}
		lastErr = err
	}
	r.metrics.ObserveResolverAttempt("exhausted")
	return nil, &Error{Class: ClassEndpoint, Detail: "all candidate endpoint shapes failed", Err: lastErr}
}

func (r *Resolver) setResolved(ctx context.Context, ep CandidateEndpoint) {
	r.mu.Lock()
	r.resolved = &ep
	r.mu.Unlock()
	r.logger.Info("resolved endpoint shape", "method", ep.Method, "path", ep.PathTemplate)
	if r.store == nil {
		return
	}
	data, err := json.Marshal(ep)
	if err == nil {
		err = r.store.Set(ctx, storage.KeyResolvedEndpoint, data)
	}
	if err != nil {
		r.logger.Warn("could not persist resolved endpoint hint", "error", err)
	}
}

func (r *Resolver) invalidate(ctx context.Context) {
	r.mu.Lock()
	r.resolved = nil
	r.mu.Unlock()
	if r.store == nil {
		return
	}
	if err := r.store.Delete(ctx, storage.KeyResolvedEndpoint); err != nil {
		r.logger.Warn("could not clear resolved endpoint hint", "error", err)
	}
}
