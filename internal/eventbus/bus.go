// Package eventbus provides an in-memory, asynchronous event bus carrying
// delivery lifecycle events. Events are dispatched through a buffered
// channel and processed by a worker pool.
package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWorkers    = 2
	defaultBufferSize = 256
)

// EventBus is the interface for publishing events and managing subscribers.
type EventBus interface {
	// Publish enqueues an event with the given type and payload.
	// It never blocks: if the buffer is full, the event is dropped and a
	// warning is logged.
	Publish(eventType string, payload map[string]string)

	// Subscribe registers a listener that will be called for every
	// published event (broadcast). Subscribe must be called before the
	// first Publish.
	Subscribe(listener Listener)

	// Close stops accepting new events and waits for all pending events
	// to be processed.
	Close()
}

// inMemoryBus is the default EventBus implementation.
type inMemoryBus struct {
	ch        chan Event
	listeners []Listener
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// New creates a new in-memory EventBus with the specified number of worker
// goroutines. If workers is <= 0, defaultWorkers is used.
func New(workers int, logger *slog.Logger) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &inMemoryBus{
		ch:     make(chan Event, defaultBufferSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
	return b
}

// dispatch calls all registered listeners for the given event, each with
// panic recovery so one bad listener cannot affect the others.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event listener panicked", "event", e.Type, "panic", r)
				}
			}()
			l(e)
		}()
	}
}

// Publish enqueues an event. If the buffer is full the event is dropped.
func (b *inMemoryBus) Publish(eventType string, payload map[string]string) {
	e := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event buffer full, dropping event", "event", eventType)
	}
}

// Subscribe adds a listener to receive all future events.
func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Close drains and closes the event channel, then waits for all workers to
// finish.
func (b *inMemoryBus) Close() {
	close(b.ch)
	b.wg.Wait()
}
