package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

const testCompetitorID = "11111111-1111-4111-8111-111111111111"

func newSyncBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryEventBus_DeliversToTypedSubscriber(t *testing.T) {
	bus := newSyncBus(t)

	var received []shared.Event
	err := bus.Subscribe(shared.EventRatingApplied, func(e shared.Event) error {
		received = append(received, e)
		return nil
	})
	require.NoError(t, err)

	event := shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512)
	require.NoError(t, bus.Publish(event))

	// Other types do not reach this subscriber.
	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver")))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventRatingApplied, received[0].EventType())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus(t)

	count := 0
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512)))
	require.NoError(t, bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver")))

	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_HandlerErrorDoesNotBlockOthers(t *testing.T) {
	bus := newSyncBus(t)

	delivered := false
	require.NoError(t, bus.Subscribe(shared.EventRatingApplied, func(e shared.Event) error {
		return errors.New("projection down")
	}))
	require.NoError(t, bus.Subscribe(shared.EventRatingApplied, func(e shared.Event) error {
		delivered = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRatingAppliedEvent(testCompetitorID, "evt-1", 1, 75, 75, 1512)))
	assert.True(t, delivered)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		wg.Done()
		return nil
	}))

	wg.Add(10)
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver")))
	}
	wg.Wait()

	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestInMemoryEventBus_RejectsAfterClose(t *testing.T) {
	bus := newSyncBus(t)
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventTierChanged, func(e shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Double close is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_PublishWithoutSubscribersIsFine(t *testing.T) {
	bus := newSyncBus(t)
	assert.NoError(t, bus.Publish(shared.NewTierChangedEvent(testCompetitorID, "bronze", "silver")))
}
