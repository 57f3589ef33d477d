package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// dropTimeout is how long Emit waits on a full subscriber before dropping.
const dropTimeout = 100 * time.Millisecond

// EventEmitter fans events out to subscribers.
// A slow subscriber loses events rather than stalling the dispatcher.
type EventEmitter struct {
	mu           sync.RWMutex
	subs         map[int]chan OrchestratorEvent
	nextID       int
	bufferSize   int
	closed       bool
	droppedCount atomic.Uint64
	log          *zap.SugaredLogger
}

// NewEventEmitter creates a new EventEmitter with the given per-subscriber buffer size.
func NewEventEmitter(bufferSize int, log *zap.SugaredLogger) *EventEmitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &EventEmitter{
		subs:       make(map[int]chan OrchestratorEvent),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (e *EventEmitter) Subscribe() (<-chan OrchestratorEvent, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan OrchestratorEvent, e.bufferSize)
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextID
	e.nextID++
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

// Emit sends an event to every subscriber.
// A full subscriber gets a short grace period before the event is dropped for it.
func (e *EventEmitter) Emit(event OrchestratorEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	for _, ch := range e.subs {
		select {
		case ch <- event:
			continue
		default:
		}

		select {
		case ch <- event:
		case <-time.After(dropTimeout):
			count := e.droppedCount.Add(1)
			if count%10 == 1 {
				e.log.Warnw("event_dropped", "type", event.Type, "total_dropped", count)
			}
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Subscribers returns the number of active subscriptions.
func (e *EventEmitter) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Close closes every subscriber channel. Later emits are ignored.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
