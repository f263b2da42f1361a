package notify

import (
	"log/slog"
	"sync"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/telemetry/metric"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// DefaultBuffer is the per-subscription event buffer.
const DefaultBuffer = 64

// Publisher forwards events to other processes.
type Publisher interface {
	Publish(e Event) error
}

// Config configures a Bus.
type Config struct {
	// Clock stamps events. Default: reference zone, system clock.
	Clock *tzclock.Service
	// Origin identifies this process. Default: a fresh ULID.
	Origin string
	// Broadcast forwards local events to other processes. Optional.
	Broadcast Publisher
	// Metrics records event counters. Optional.
	Metrics *metric.Registry
	// Logger is the structured logger.
	Logger *slog.Logger
}

// Bus fans change events out to in-process subscribers and, optionally,
// to other processes.
type Bus struct {
	clock     *tzclock.Service
	origin    string
	broadcast Publisher
	metrics   *metric.Registry
	logger    *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
}

// NewBus creates a Bus.
func NewBus(cfg Config) *Bus {
	if cfg.Clock == nil {
		cfg.Clock = tzclock.MustNew("", nil)
	}
	if cfg.Origin == "" {
		cfg.Origin = NewID(cfg.Clock.Now())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bus{
		clock:     cfg.Clock,
		origin:    cfg.Origin,
		broadcast: cfg.Broadcast,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		subs:      make(map[int]*Subscription),
	}
}

// Origin returns the identifier stamped on events emitted by this bus.
func (b *Bus) Origin() string {
	return b.origin
}

// NotifyChange emits the event for a committed change of family. It
// never blocks on subscribers and never fails.
func (b *Bus) NotifyChange(family domain.Family, reason string) {
	now := b.clock.Now()
	e := Event{
		ID:        NewID(now),
		Name:      EventNameFor(family),
		Family:    family,
		Reason:    reason,
		Timestamp: b.clock.Format(now),
		Origin:    b.origin,
	}

	b.deliver(e, "local")

	if b.broadcast != nil {
		if err := b.broadcast.Publish(e); err != nil {
			b.logger.Warn("broadcast change event failed",
				"event", e.Name,
				"id", e.ID,
				"error", err)
			return
		}
		b.metrics.RecordChangeEvent(string(family), "broadcast")
	}
}

// Deliver hands an event received from another process to local
// subscribers. Events emitted by this bus are ignored.
func (b *Bus) Deliver(e Event) {
	if e.Origin == b.origin {
		return
	}
	b.deliver(e, "received")
}

func (b *Bus) deliver(e Event, channel string) {
	b.metrics.RecordChangeEvent(string(e.Family), channel)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.offer(e, b.logger)
	}
}

// Subscribe registers a subscriber for the given event names (all when
// none are given). buffer <= 0 selects DefaultBuffer.
func (b *Bus) Subscribe(buffer int, names ...EventName) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{
		ch:  make(chan Event, buffer),
		bus: b,
	}
	if len(names) > 0 {
		s.names = make(map[EventName]struct{}, len(names))
		for _, n := range names {
			s.names[n] = struct{}{}
		}
	}

	b.mu.Lock()
	s.id = b.nextID
	b.nextID++
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.id]; ok {
		delete(b.subs, s.id)
		close(s.ch)
	}
}

// Subscription receives events on C until Close.
type Subscription struct {
	id    int
	ch    chan Event
	names map[EventName]struct{}
	bus   *Bus
}

// C returns the event channel. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// offer is called with the bus read lock held.
func (s *Subscription) offer(e Event, logger *slog.Logger) {
	if s.names != nil {
		if _, ok := s.names[e.Name]; !ok {
			return
		}
	}
	select {
	case s.ch <- e:
	default:
		logger.Warn("subscriber buffer full, change event dropped",
			"event", e.Name,
			"id", e.ID)
	}
}
