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

// intentSource exposes queued local intents to the cache overlay.
type intentSource interface {
	DesiredStatus(id string) (appointments.Status, bool)
}

// Cache is the durable, latest-known appointment list. Reads overlay any
// queued local intent on top of the cached server state, so the UI never
// regresses a status change the user has already expressed.
type Cache struct {
	store   storage.KV
	intents intentSource
	logger  *logging.Logger
	now     func() time.Time

	byID map[string]appointments.Appointment
}

// NewCache creates an empty cache. intents is typically the pending
// operation queue; it may not be nil. Call Load before first use.
func NewCache(store storage.KV, intents intentSource, logger *logging.Logger) *Cache {
	if store == nil {
		panic("sync: cache requires storage")
	}
	if intents == nil {
		panic("sync: cache requires an intent source")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		store:   store,
		intents: intents,
		logger:  logger,
		now:     time.Now,
		byID:    make(map[string]appointments.Appointment),
	}
}

// Load restores the persisted appointment list. A missing or corrupt
// record is not fatal: the cache starts empty.
func (c *Cache) Load(ctx context.Context) {
	data, err := c.store.Get(ctx, storage.KeyCachedAppointments)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("could not load cached appointments, starting empty", "error", err)
		}
		return
	}
	var appts []appointments.Appointment
	if err := json.Unmarshal(data, &appts); err != nil {
		c.logger.Warn("cached appointments record is corrupt, starting empty", "error", err)
		return
	}
	for _, a := range appts {
		if a.ID == "" {
			continue
		}
		c.byID[a.ID] = a
	}
}

// List returns all known appointments with the overlay rule applied: an
// appointment with a queued intent reports the intended status regardless
// of what the cached server record says.
func (c *Cache) List() []appointments.Appointment {
	appts := make([]appointments.Appointment, 0, len(c.byID))
	for _, a := range c.byID {
		if desired, ok := c.intents.DesiredStatus(a.ID); ok {
			a.Status = desired
		}
		appts = append(appts, a)
	}
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].ScheduledAt.Equal(appts[j].ScheduledAt) {
			return appts[i].ScheduledAt.Before(appts[j].ScheduledAt)
		}
		return appts[i].ID < appts[j].ID
	})
	return appts
}

// Get returns one appointment with the overlay applied.
func (c *Cache) Get(id string) (appointments.Appointment, bool) {
	a, ok := c.byID[id]
	if !ok {
		return appointments.Appointment{}, false
	}
	if desired, ok := c.intents.DesiredStatus(a.ID); ok {
		a.Status = desired
	}
	return a, true
}

// ReplaceAll swaps in a fresh server fetch wholesale and persists. Queued
// intents are not touched; the overlay keeps them visible even when the
// fetched data is stale relative to a pending operation.
func (c *Cache) ReplaceAll(ctx context.Context, appts []appointments.Appointment) {
	c.byID = make(map[string]appointments.Appointment, len(appts))
	for _, a := range appts {
		if a.ID == "" {
			continue
		}
		c.byID[a.ID] = a
	}
	c.persist(ctx)
}

// Upsert stores one server-acknowledged appointment record and persists.
func (c *Cache) Upsert(ctx context.Context, appt appointments.Appointment) {
	if appt.ID == "" {
		return
	}
	c.byID[appt.ID] = appt
	c.persist(ctx)
}

// ApplyStatus updates a single appointment's status and bumps its update
// timestamp. Used for optimistic local writes and for acknowledgments that
// did not return a full record. Unknown ids are ignored.
func (c *Cache) ApplyStatus(ctx context.Context, id string, status appointments.Status) {
	a, ok := c.byID[id]
	if !ok {
		return
	}
	a.Status = status
	a.UpdatedAt = c.now().UTC()
	c.byID[id] = a
	c.persist(ctx)
}

// Len returns the number of cached appointments.
func (c *Cache) Len() int { return len(c.byID) }

func (c *Cache) persist(ctx context.Context) {
	appts := make([]appointments.Appointment, 0, len(c.byID))
	for _, a := range c.byID {
		appts = append(appts, a)
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].ID < appts[j].ID })
	data, err := json.Marshal(appts)
	if err == nil {
		err = c.store.Set(ctx, storage.KeyCachedAppointments, data)
	}
	if err != nil {
		c.logger.Error("could not persist cached appointments", "error", err, "count", len(c.byID))
	}
}
