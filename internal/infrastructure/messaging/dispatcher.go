package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// Routes bus events to named observers: middleware chain, bounded retry with
// backoff, and a dead-letter buffer for observers that keep failing.
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher fans events out from the bus to registered observers. It is the
// single subscription point of a binary: handlers register here, Start wires
// the dispatcher into the bus, and every published event flows through the
// middleware chain before reaching its observers.
type Dispatcher struct {
	bus         shared.EventBus
	observers   map[shared.EventType][]ObserverRegistration
	middlewares []Middleware
	retry       RetryConfig
	deadLetters *DeadLetterQueue
	logger      *slog.Logger
	mu          sync.RWMutex
}

// ObserverRegistration names an event handler and its execution policy.
type ObserverRegistration struct {
	Name       string
	Handler    shared.EventHandler
	MaxRetries int
}

// RetryConfig bounds observer retries.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry policy used by both binaries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Bus is the event bus the dispatcher subscribes to.
	Bus shared.EventBus

	// Retry bounds observer retries; zero value means DefaultRetryConfig.
	Retry RetryConfig

	// DeadLetterCapacity bounds the dead-letter buffer (0 disables it).
	DeadLetterCapacity int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults for the given bus.
func DefaultDispatcherConfig(bus shared.EventBus) DispatcherConfig {
	return DispatcherConfig{
		Bus:                bus,
		Retry:              DefaultRetryConfig(),
		DeadLetterCapacity: 1000,
	}
}

// NewDispatcher creates a dispatcher over the given bus.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Retry.MaxRetries <= 0 && config.Retry.InitialBackoff <= 0 {
		config.Retry = DefaultRetryConfig()
	}

	d := &Dispatcher{
		bus:       config.Bus,
		observers: make(map[shared.EventType][]ObserverRegistration),
		retry:     config.Retry,
		logger:    config.Logger,
	}
	if config.DeadLetterCapacity > 0 {
		d.deadLetters = NewDeadLetterQueue(config.DeadLetterCapacity)
	}
	return d
}

// Register adds an observer for one event type.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	if name == "" {
		return errors.New("observer name cannot be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers[eventType] = append(d.observers[eventType], ObserverRegistration{
		Name:       name,
		Handler:    handler,
		MaxRetries: d.retry.MaxRetries,
	})
	d.logger.Debug("observer registered", "event_type", eventType, "observer", name)
	return nil
}

// Use appends middleware; the first added wraps outermost.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// Start subscribes the dispatcher to every event on the bus.
func (d *Dispatcher) Start() error {
	return d.bus.SubscribeAll(d.Dispatch)
}

// Dispatch routes one event to its observers. Observer failures are retried
// with backoff and, once exhausted, parked in the dead-letter buffer; the
// publisher is never blocked on an unhealthy observer beyond that.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	observers := d.observers[event.EventType()]
	middlewares := d.middlewares
	d.mu.RUnlock()

	var failed []string
	for _, reg := range observers {
		if err := d.runObserver(event, reg, middlewares); err != nil {
			failed = append(failed, reg.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("observers failed for %s: %v", event.EventType(), failed)
	}
	return nil
}

func (d *Dispatcher) runObserver(event shared.Event, reg ObserverRegistration, middlewares []Middleware) error {
	handler := reg.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	var lastErr error
	for attempt := 0; attempt <= reg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.backoff(attempt))
		}

		if lastErr = handler(event); lastErr == nil {
			return nil
		}
		d.logger.Warn("observer attempt failed",
			"observer", reg.Name,
			"event_type", event.EventType(),
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	if d.deadLetters != nil {
		d.deadLetters.Add(DeadLetterEntry{
			Event:        event,
			ObserverName: reg.Name,
			Error:        lastErr,
			Attempts:     reg.MaxRetries + 1,
			FailedAt:     time.Now(),
		})
	}
	return fmt.Errorf("observer %s failed after %d attempts: %w", reg.Name, reg.MaxRetries+1, lastErr)
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	backoff := float64(d.retry.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= d.retry.BackoffMultiplier
	}
	if max := float64(d.retry.MaxBackoff); backoff > max {
		backoff = max
	}
	return time.Duration(backoff)
}

// DeadLetters returns the dead-letter buffer (nil when disabled).
func (d *Dispatcher) DeadLetters() *DeadLetterQueue {
	return d.deadLetters
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps observer execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware turns observer panics into errors so one broken
// observer cannot take the dispatch loop down.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("observer panic recovered",
						"event_type", event.EventType(),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("observer panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs each observer execution with its duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			if err != nil {
				logger.Error("observer failed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"duration", time.Since(start),
					"error", err,
				)
				return err
			}
			logger.Debug("observer completed",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"duration", time.Since(start),
			)
			return nil
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is one event an observer could not process.
type DeadLetterEntry struct {
	Event        shared.Event
	ObserverName string
	Error        error
	Attempts     int
	FailedAt     time.Time
}

// DeadLetterQueue is a bounded in-memory buffer of failed deliveries; when
// full, the oldest entry is dropped.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a buffer with the given capacity.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add parks a failed delivery, evicting the oldest entry at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the parked deliveries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of parked deliveries.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Pop removes and returns the oldest parked delivery.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}
