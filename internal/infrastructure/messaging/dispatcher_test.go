package messaging

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

func newTestDispatcher(t *testing.T, bus shared.EventBus) *Dispatcher {
	t.Helper()
	cfg := DefaultDispatcherConfig(bus)
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(cfg)
}

func TestDispatcher_RoutesEventsToObservers(t *testing.T) {
	bus := newSyncBus(t)
	d := newTestDispatcher(t, bus)

	var applied, tierChanges int
	require.NoError(t, d.Register(shared.EventRatingApplied, "count.applied", func(e shared.Event) error {
		applied++
		return nil
	}))
	require.NoError(t, d.Register(shared.EventTierChanged, "count.tier", func(e shared.Event) error {
		tierChanges++
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512)))
	require.NoError(t, bus.Publish(shared.NewRatingAppliedEvent(testCompetitorID, "evt-2", 2, 8, 83, 1510)))
	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver")))

	assert.Equal(t, 2, applied)
	assert.Equal(t, 1, tierChanges)
}

func TestDispatcher_RetriesBeforeGivingUp(t *testing.T) {
	bus := newSyncBus(t)
	d := newTestDispatcher(t, bus)

	attempts := 0
	require.NoError(t, d.Register(shared.EventRatingApplied, "flaky", func(e shared.Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("projection warming up")
		}
		return nil
	}))

	err := d.Dispatch(shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, d.DeadLetters().Size())
}

func TestDispatcher_ExhaustedRetriesLandInDeadLetters(t *testing.T) {
	bus := newSyncBus(t)
	d := newTestDispatcher(t, bus)

	attempts := 0
	require.NoError(t, d.Register(shared.EventRatingApplied, "broken", func(e shared.Event) error {
		attempts++
		return errors.New("projection down")
	}))

	err := d.Dispatch(shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512))
	require.Error(t, err)

	// Первая попытка плюс MaxRetries повторов.
	assert.Equal(t, DefaultRetryConfig().MaxRetries+1, attempts)

	require.Equal(t, 1, d.DeadLetters().Size())
	entry, ok := d.DeadLetters().Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.ObserverName)
	assert.Equal(t, shared.EventRatingApplied, entry.Event.EventType())
	assert.Equal(t, attempts, entry.Attempts)
}

func TestDispatcher_RecoveryMiddlewareTurnsPanicIntoError(t *testing.T) {
	bus := newSyncBus(t)
	d := newTestDispatcher(t, bus)
	d.Use(RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))

	require.NoError(t, d.Register(shared.EventTierChanged, "panicky", func(e shared.Event) error {
		panic("nil map write")
	}))

	err := d.Dispatch(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver"))
	require.Error(t, err)
	assert.Equal(t, 1, d.DeadLetters().Size())
}

func TestDispatcher_FailingObserverDoesNotStarveOthers(t *testing.T) {
	bus := newSyncBus(t)
	d := newTestDispatcher(t, bus)

	healthy := 0
	require.NoError(t, d.Register(shared.EventTierChanged, "broken", func(e shared.Event) error {
		return errors.New("projection down")
	}))
	require.NoError(t, d.Register(shared.EventTierChanged, "healthy", func(e shared.Event) error {
		healthy++
		return nil
	}))

	err := d.Dispatch(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver"))
	require.Error(t, err)
	assert.Equal(t, 1, healthy)
}

func TestDispatcher_RegisterValidation(t *testing.T) {
	d := newTestDispatcher(t, newSyncBus(t))

	assert.Error(t, d.Register(shared.EventRatingApplied, "noop", nil))
	assert.Error(t, d.Register(shared.EventRatingApplied, "", func(e shared.Event) error { return nil }))
}

func TestDeadLetterQueue_EvictsOldestAtCapacity(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for i := 0; i < 3; i++ {
		q.Add(DeadLetterEntry{ObserverName: string(rune('a' + i))})
	}

	require.Equal(t, 2, q.Size())
	entry, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", entry.ObserverName)
}

func TestRegisterAuditObservers_CoverDomainEvents(t *testing.T) {
	bus := newSyncBus(t)
	d := newTestDispatcher(t, bus)
	require.NoError(t, RegisterAuditObservers(d, slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512)))
	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver")))
	require.NoError(t, bus.Publish(shared.NewRatingDecayedEvent(testCompetitorID, 300, 285, 1)))
	require.NoError(t, bus.Publish(shared.NewDecayTickCompletedEvent(40, 12, time.Now(), 180)))
	require.NoError(t, bus.Publish(shared.NewStandingsRecomputedEvent("global", "snap-1", 40, 3)))

	assert.Equal(t, 0, d.DeadLetters().Size())
}
