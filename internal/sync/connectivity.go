package sync

import (
	"context"
	"time"

	"github.com/carebridge/telemed-sync/pkg/logging"
)

// ConnectivitySource observes online/offline transitions. It is an
// injected environment capability so the monitor stays testable with fakes
// and portable across runtimes.
type ConnectivitySource interface {
	// Watch emits the current state once, then every transition.
	// true means online. The channel closes when ctx is done.
	Watch(ctx context.Context) <-chan bool
}

// Monitor reacts to connectivity transitions: offline raises the engine's
// degraded-mode signal, online triggers a drain and a cache refresh.
type Monitor struct {
	source ConnectivitySource
	engine *Engine
	logger *logging.Logger
}

// NewMonitor wires a connectivity source to the sync engine.
func NewMonitor(source ConnectivitySource, engine *Engine, logger *logging.Logger) *Monitor {
	if source == nil || engine == nil {
		panic("sync: monitor requires a source and an engine")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{source: source, engine: engine, logger: logger}
}

// Run blocks processing transitions until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ch := m.source.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online, ok := <-ch:
			if !ok {
				return nil
			}
			if !online {
				m.logger.Warn("connectivity lost, entering degraded mode")
				m.engine.SetOffline(true)
				continue
			}
			m.logger.Info("connectivity restored")
			m.engine.SetOffline(false)
			result := m.engine.Drain(ctx)
			if result.Ran && result.Err != nil {
				m.logger.Warn("post-reconnect drain stopped early",
					"drained", result.Drained,
					"remaining", result.Remaining,
					"error", result.Err,
				)
			}
			if err := m.engine.Refresh(ctx); err != nil {
				m.logger.Warn("post-reconnect refresh failed", "error", err)
			}
		}
	}
}

// Pinger probes backend reachability. Implemented by backend.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeSource derives connectivity transitions by periodically probing the
// backend. It stands in for runtime online/offline events on platforms
// that do not provide them.
type ProbeSource struct {
	pinger   Pinger
	interval time.Duration
	logger   *logging.Logger
}

// NewProbeSource creates a probe-based connectivity source.
func NewProbeSource(pinger Pinger, interval time.Duration, logger *logging.Logger) *ProbeSource {
	if pinger == nil {
		panic("sync: probe source requires a pinger")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ProbeSource{pinger: pinger, interval: interval, logger: logger}
}

// Watch probes immediately, then on every tick, emitting only changes.
func (p *ProbeSource) Watch(ctx context.Context) <-chan bool {
	ch := make(chan bool, 1)
	timeout := p.interval
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		var last *bool
		probe := func() bool {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			online := p.pinger.Ping(probeCtx) == nil
			if last != nil && *last == online {
				return true
			}
			last = &online
			select {
			case ch <- online:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !probe() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !probe() {
					return
				}
			}
		}
	}()
	return ch
}
