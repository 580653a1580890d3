package realtime

import (
	"context"
	"sync"

	"github.com/joestump/joe-marks/internal/logger"
	"github.com/joestump/joe-marks/internal/metrics"
)

// DefaultQueueSize is the per-subscriber event buffer.
const DefaultQueueSize = 64

// Hub is an in-process broker. Subscribers are keyed by owner and a
// client-chosen channel name, and receive only their owner's events.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscriber
	queueSize int
	log       logger.Logger
}

// NewHub creates a Hub. queueSize <= 0 selects DefaultQueueSize.
func NewHub(queueSize int, log logger.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		subs:      make(map[string]*Subscriber),
		queueSize: queueSize,
		log:       log,
	}
}

// Subscriber receives events for one owner on one channel.
type Subscriber struct {
	Channel string
	OwnerID string

	hub    *Hub
	events chan Event
	once   sync.Once
}

// Events yields this subscriber's events. It is closed when the subscriber is
// closed, either by Close, by eviction, or by queue overflow.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Close unregisters the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.hub.remove(s)
}

// Subscribe registers a subscriber for ownerID under channel. An existing
// subscriber of the same owner on the same channel name is stale and gets
// evicted, so a channel never has two live consumers.
func (h *Hub) Subscribe(channel, ownerID string) *Subscriber {
	sub := &Subscriber{
		Channel: channel,
		OwnerID: ownerID,
		hub:     h,
		events:  make(chan Event, h.queueSize),
	}

	key := sub.key()
	h.mu.Lock()
	stale := h.subs[key]
	h.subs[key] = sub
	h.mu.Unlock()

	if stale != nil {
		h.log.Warn("evicting stale subscriber", logger.String("channel", channel))
		stale.shutdown()
	} else {
		metrics.ChangeSubscribers.Inc()
	}
	return sub
}

// Publish delivers ev to every subscriber owning the changed bookmark. It never
// blocks: a subscriber whose queue is full is closed so its client resyncs
// instead of silently missing an event.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	metrics.ChangeEventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()
	h.dispatch(ev)
	return nil
}

func (h *Hub) dispatch(ev Event) {
	h.mu.RLock()
	var overflow []*Subscriber
	for _, sub := range h.subs {
		if sub.OwnerID != ev.Bookmark.OwnerID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			overflow = append(overflow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range overflow {
		metrics.ChangeEventsDroppedTotal.Inc()
		h.log.Warn("subscriber queue full, closing",
			logger.String("channel", sub.Channel),
			logger.String("owner_id", sub.OwnerID))
		sub.Close()
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscriber) {
	key := sub.key()
	h.mu.Lock()
	current, ok := h.subs[key]
	if ok && current == sub {
		delete(h.subs, key)
	}
	h.mu.Unlock()

	if ok && current == sub {
		metrics.ChangeSubscribers.Dec()
	}
	sub.shutdown()
}

func (s *Subscriber) key() string { return s.OwnerID + "\x00" + s.Channel }

func (s *Subscriber) shutdown() {
	s.once.Do(func() { close(s.events) })
}
