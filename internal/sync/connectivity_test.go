package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/telemed-sync/internal/appointments"
)

// chanSource is a scripted ConnectivitySource for monitor tests.
type chanSource struct {
	ch chan bool
}

func (s *chanSource) Watch(ctx context.Context) <-chan bool { return s.ch }

func TestMonitorOfflineTransitionSetsDegradedMode(t *testing.T) {
	f := newTestEngine(t)
	source := &chanSource{ch: make(chan bool)}
	monitor := NewMonitor(source, f.engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	source.ch <- false
	require.Eventually(t, f.engine.IsOffline, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMonitorOnlineTransitionDrainsAndRefreshes(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	f.queue.Enqueue(ctx, "a1", appointments.StatusCancelled)
	f.backend.list = []appointments.Appointment{testAppointment("a1", appointments.StatusCancelled)}
	f.engine.SetOffline(true)

	source := &chanSource{ch: make(chan bool)}
	monitor := NewMonitor(source, f.engine, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(runCtx)
		close(done)
	}()

	source.ch <- true
	require.Eventually(t, func() bool {
		return !f.engine.HasPendingSyncs()
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.engine.IsOffline())

	require.Eventually(t, func() bool {
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		return f.backend.fetches == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMonitorStopsWhenSourceCloses(t *testing.T) {
	f := newTestEngine(t)
	source := &chanSource{ch: make(chan bool)}
	monitor := NewMonitor(source, f.engine, nil)

	done := make(chan error, 1)
	go func() { done <- monitor.Run(context.Background()) }()
	close(source.ch)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after source closed")
	}
}

// flipPinger reports offline until flipped.
type flipPinger struct {
	mu     gosync.Mutex
	online bool
}

func (p *flipPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online {
		return nil
	}
	return errNetwork
}

func (p *flipPinger) set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

func TestProbeSourceEmitsTransitionsOnly(t *testing.T) {
	pinger := &flipPinger{}
	source := NewProbeSource(pinger, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := source.Watch(ctx)

	// Initial state is emitted immediately.
	select {
	case online := <-ch:
		assert.False(t, online)
	case <-time.After(time.Second):
		t.Fatal("no initial state emitted")
	}

	// Steady state emits nothing.
	select {
	case online := <-ch:
		t.Fatalf("unexpected emission %v before any transition", online)
	case <-time.After(50 * time.Millisecond):
	}

	pinger.set(true)
	select {
	case online := <-ch:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("transition to online not emitted")
	}
}

func TestProbeSourceClosesOnCancel(t *testing.T) {
	pinger := &flipPinger{online: true}
	source := NewProbeSource(pinger, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := source.Watch(ctx)
	<-ch // initial online
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A tick may have raced the cancel; the channel still has to
			// close right after.
			_, ok = <-ch
			assert.False(t, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
