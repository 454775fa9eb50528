package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/telemed-sync/internal/appointments"
	"github.com/carebridge/telemed-sync/internal/storage"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

func testAppointment(id string, status appointments.Status) appointments.Appointment {
	return appointments.Appointment{
		ID:          id,
		DoctorID:    "d1",
		UserID:      "u1",
		ScheduledAt: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		Status:      status,
		CreatedAt:   time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestCache(t *testing.T) (*Cache, *Queue) {
	t.Helper()
	store := newTestStorage(t)
	q := NewQueue(store, logging.New("error"))
	c := NewCache(store, q, logging.New("error"))
	return c, q
}

func TestOverlayRule(t *testing.T) {
	c, q := newTestCache(t)
	ctx := context.Background()

	c.ReplaceAll(ctx, []appointments.Appointment{testAppointment("x1", appointments.StatusConfirmed)})
	q.Enqueue(ctx, "x1", appointments.StatusCancelled)

	appts := c.List()
	require.Len(t, appts, 1)
	assert.Equal(t, appointments.StatusCancelled, appts[0].Status,
		"pending local intent must win over the cached server value")

	got, ok := c.Get("x1")
	require.True(t, ok)
	assert.Equal(t, appointments.StatusCancelled, got.Status)
}

func TestOverlaySurvivesStaleFetch(t *testing.T) {
	c, q := newTestCache(t)
	ctx := context.Background()

	q.Enqueue(ctx, "a2", appointments.StatusCancelled)
	// A racing server fetch still says confirmed.
	c.ReplaceAll(ctx, []appointments.Appointment{testAppointment("a2", appointments.StatusConfirmed)})

	appts := c.List()
	require.Len(t, appts, 1)
	assert.Equal(t, appointments.StatusCancelled, appts[0].Status)

	// Once the intent is confirmed and removed, the cache value shows.
	q.Remove(ctx, "a2")
	assert.Equal(t, appointments.StatusConfirmed, c.List()[0].Status)
}

func TestCachePersistReload(t *testing.T) {
	store := newTestStorage(t)
	q := NewQueue(store, logging.New("error"))
	ctx := context.Background()

	c := NewCache(store, q, logging.New("error"))
	c.ReplaceAll(ctx, []appointments.Appointment{
		testAppointment("a1", appointments.StatusPending),
		testAppointment("b2", appointments.StatusConfirmed),
	})

	reloaded := NewCache(store, q, logging.New("error"))
	reloaded.Load(ctx)
	assert.Equal(t, c.List(), reloaded.List())
}

func TestCacheLoadToleratesCorruptRecord(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyCachedAppointments, []byte("[broken")))

	q := NewQueue(store, logging.New("error"))
	c := NewCache(store, q, logging.New("error"))
	c.Load(ctx)
	assert.Zero(t, c.Len())
}

func TestApplyStatusBumpsUpdatedAt(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	c.now = func() time.Time { return time.Date(2026, 9, 20, 12, 0, 0, 0, time.UTC) }

	c.ReplaceAll(ctx, []appointments.Appointment{testAppointment("a1", appointments.StatusPending)})
	c.ApplyStatus(ctx, "a1", appointments.StatusCancelled)

	got, ok := c.Get("a1")
	require.True(t, ok)
	assert.Equal(t, appointments.StatusCancelled, got.Status)
	assert.Equal(t, time.Date(2026, 9, 20, 12, 0, 0, 0, time.UTC), got.UpdatedAt)
}

func TestApplyStatusUnknownIDIgnored(t *testing.T) {
	c, _ := newTestCache(t)
	c.ApplyStatus(context.Background(), "ghost", appointments.StatusCancelled)
	assert.Zero(t, c.Len())
}

func TestUpsertReplacesRecord(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Upsert(ctx, testAppointment("a1", appointments.StatusPending))
	confirmed := testAppointment("a1", appointments.StatusConfirmed)
	c.Upsert(ctx, confirmed)

	got, ok := c.Get("a1")
	require.True(t, ok)
	assert.Equal(t, confirmed, got)
	assert.Equal(t, 1, c.Len())
}

func TestListSortedBySchedule(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	early := testAppointment("b2", appointments.StatusPending)
	early.ScheduledAt = time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
	late := testAppointment("a1", appointments.StatusPending)
	late.ScheduledAt = time.Date(2026, 9, 16, 8, 0, 0, 0, time.UTC)
	c.ReplaceAll(ctx, []appointments.Appointment{late, early})

	appts := c.List()
	require.Len(t, appts, 2)
	assert.Equal(t, "b2", appts[0].ID)
	assert.Equal(t, "a1", appts[1].ID)
}
