package session

import (
	"encoding/json"
	"sync"

	"github.com/neuroforge/trainlink/internal/protocol"
	"github.com/rs/zerolog"
)

// EventKind names one category on the client's event stream.
type EventKind string

const (
	EventConnected      EventKind = "connected"
	EventDisconnected   EventKind = "disconnected"
	EventError          EventKind = "error"
	EventMessage        EventKind = "message"
	EventTrainProgress  EventKind = "train_progress"
	EventTrainCompleted EventKind = "train_completed"
)

// Event is one item delivered to subscribers. Payload is set for
// message and training events, Err for error events, Reason for
// disconnects.
type Event struct {
	Kind    EventKind
	Command protocol.CommandType
	Payload json.RawMessage
	Err     error
	Reason  string
}

// Subscription is one registered listener. C carries events until
// Close; a subscriber that falls behind loses events rather than
// blocking the read loop.
type Subscription struct {
	C chan Event

	bus   *eventBus
	kinds map[EventKind]struct{}
}

// Close deregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) wants(kind EventKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// eventBus fans events out to subscriptions. Publishing never blocks.
type eventBus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	log    zerolog.Logger
}

func newEventBus(buffer int, log zerolog.Logger) *eventBus {
	if buffer <= 0 {
		buffer = 16
	}
	return &eventBus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// subscribe registers a listener for the given kinds; no kinds means
// every kind.
func (b *eventBus) subscribe(kinds ...EventKind) *Subscription {
	sub := &Subscription{
		C:   make(chan Event, b.buffer),
		bus: b,
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]struct{}, len(kinds))
		for _, kind := range kinds {
			sub.kinds[kind] = struct{}{}
		}
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *eventBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.C)
	}
	b.mu.Unlock()
}

func (b *eventBus) publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.wants(evt.Kind) {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			b.log.Warn().Str("kind", string(evt.Kind)).Msg("slow subscriber, event dropped")
		}
	}
}
