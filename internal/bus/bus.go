// Package bus implements the single-producer/multi-consumer event bus:
// nanobots subscribe, submitted events are delivered to every subscriber
// whose CanHandle returns true, and a bounded pending queue drops the
// lowest-priority entries under backpressure rather than blocking.
package bus

import (
	"sync"

	"github.com/iff-guardian/nanoguard/internal/domain"
	"github.com/iff-guardian/nanoguard/pkg/logger"
)

// Subscriber is anything the bus can deliver events to. Nanobots implement
// this; Process must never panic across the bus boundary — Bus recovers any
// panic itself and isolates it per subscriber.
type Subscriber interface {
	ID() string
	CanHandle(event domain.Event) bool
	Process(event domain.Event) (*domain.ActionResult, error)
}

// priority returns a rough drop-order key for backpressure: events with a
// higher threat score are kept longer under overflow.
func priority(e domain.Event) float64 {
	if e.ThreatScore != nil {
		return *e.ThreatScore
	}
	return 0
}

// Bus is the event bus that sensors submit events onto and subscribers drain from.
type Bus struct {
	log logger.Logger

	mu          sync.RWMutex
	subscribers map[string]Subscriber

	qmu      sync.Mutex
	queue    []domain.Event
	queueCap int
	dropped  int64

	errmu     sync.Mutex
	errEvents []domain.Event
}

// New constructs a Bus with the given bounded queue capacity.
func New(log logger.Logger, queueCap int) *Bus {
	if queueCap <= 0 {
		queueCap = 1024
	}
	return &Bus{
		log:         log,
		subscribers: make(map[string]Subscriber),
		queueCap:    queueCap,
	}
}

// Subscribe registers a subscriber under its own id, replacing any prior
// registration with the same id.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[s.ID()] = s
}

// Unsubscribe removes a subscriber by id.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Submit queues an event for later draining via Drain. On overflow the
// lowest-priority pending event is dropped and the drop counter incremented.
func (b *Bus) Submit(event domain.Event) {
	b.qmu.Lock()
	defer b.qmu.Unlock()

	if len(b.queue) >= b.queueCap {
		lowest := 0
		for i := 1; i < len(b.queue); i++ {
			if priority(b.queue[i]) < priority(b.queue[lowest]) {
				lowest = i
			}
		}
		b.queue = append(b.queue[:lowest], b.queue[lowest+1:]...)
		b.dropped++
	}
	b.queue = append(b.queue, event)
}

// Drain takes a snapshot of the pending queue and clears it, releasing the
// queue lock before the caller dispatches — matching the
// snapshot-then-release discipline the swarm worker relies on.
func (b *Bus) Drain() []domain.Event {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	out := b.queue
	b.queue = nil
	return out
}

// Dropped returns the number of events dropped to backpressure so far.
func (b *Bus) Dropped() int64 {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return b.dropped
}

// Dispatch delivers event to every currently-subscribed, matching
// subscriber synchronously, isolating panics per §4.1's failure semantics.
func (b *Bus) Dispatch(event domain.Event) []domain.ActionResult {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	results := make([]domain.ActionResult, 0, len(subs))
	for _, s := range subs {
		result := b.dispatchOne(s, event)
		if result != nil {
			results = append(results, *result)
		}
	}
	return results
}

func (b *Bus) dispatchOne(s Subscriber, event domain.Event) (result *domain.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			if b.log != nil {
				b.log.Error("subscriber panicked", "subscriber", s.ID(), "panic", r)
			}
			b.recordSubscriberError(event)
			result = nil
		}
	}()

	if !s.CanHandle(event) {
		return nil
	}
	res, err := s.Process(event)
	if err != nil {
		if b.log != nil {
			b.log.Warn("subscriber returned error", "subscriber", s.ID(), "error", err)
		}
		b.recordSubscriberError(event)
		return nil
	}
	return res
}

func (b *Bus) recordSubscriberError(event domain.Event) {
	b.errmu.Lock()
	defer b.errmu.Unlock()
	b.errEvents = append(b.errEvents, domain.NewEvent("bus", "subscriber_error", map[string]any{
		"original_event_id": event.ID,
	}))
}

// SubscriberErrors returns the internal subscriber_error events recorded so
// far, for observers that want to watch for isolated subscriber failures.
func (b *Bus) SubscriberErrors() []domain.Event {
	b.errmu.Lock()
	defer b.errmu.Unlock()
	return append([]domain.Event(nil), b.errEvents...)
}
