// Package realtime fans view-invalidation events out to the clients of a
// household.
package realtime

import (
	"sync"
	"time"

	"github.com/Raleighawesome/family-movies/internal/metrics"
	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 16

// Subscription receives the events of one household until closed.
type Subscription struct {
	HouseholdID string
	events      chan model.InvalidationEvent
	hub         *Hub
	once        sync.Once
}

// Events is closed when the subscription ends, either by Close or because the
// subscriber fell behind.
func (s *Subscription) Events() <-chan model.InvalidationEvent {
	return s.events
}

func (s *Subscription) Close() {
	s.hub.remove(s)
}

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Subscribe(householdID string) *Subscription {
	sub := &Subscription{
		HouseholdID: householdID,
		events:      make(chan model.InvalidationEvent, subscriberBuffer),
		hub:         h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[householdID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[householdID] = set
	}
	set[sub] = struct{}{}
	metrics.RealtimeSubscribers.Inc()
	return sub
}

// Invalidate tells every subscriber of householdID that views are stale.
// Subscribers whose buffer is full are dropped rather than blocking the caller.
func (h *Hub) Invalidate(householdID string, views ...string) {
	if householdID == "" || len(views) == 0 {
		return
	}

	event := model.InvalidationEvent{
		Type:        model.EventInvalidate,
		HouseholdID: householdID,
		Views:       append([]string(nil), views...),
		At:          h.now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[householdID] {
		select {
		case sub.events <- event:
			metrics.RecordEventDelivery("delivered")
		default:
			h.log.WithField("household_id", householdID).Warn("dropping slow invalidation subscriber")
			metrics.RecordEventDelivery("dropped")
			h.removeLocked(sub)
		}
	}
}

// Subscribers counts live subscriptions for a household.
func (h *Hub) Subscribers(householdID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[householdID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	set, ok := h.subs[sub.HouseholdID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	metrics.RealtimeSubscribers.Dec()
	if len(set) == 0 {
		delete(h.subs, sub.HouseholdID)
	}
	sub.once.Do(func() { close(sub.events) })
}
