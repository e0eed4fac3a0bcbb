// Package broadcast implements the Progress Broadcaster (component H): a
// single-process pub/sub hub delivering scrape phase events and odds-update
// hints to SSE and WebSocket subscribers, with last-value replay on connect.
package broadcast

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// subscriberBufferSize bounds each subscriber's queue. A subscriber whose
// queue fills is dropped rather than stalling publishers (tail-drop).
const subscriberBufferSize = 256

type replayKey struct {
	topic    string
	runID    int64
	platform string
}

// Subscriber is one registered consumer. Events arrive on C; Close
// unregisters and closes it.
type Subscriber struct {
	ID     string
	C      chan Event
	topics map[string]bool
	hub    *Hub
	once   sync.Once
}

// Close unregisters the subscriber from its hub.
func (s *Subscriber) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

// Hub fans events out to subscribers and retains the last event per
// (topic, run, platform) as a replay cache.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
	replay      map[replayKey]Event

	totalPublished int64
	totalDropped   int64

	log zerolog.Logger
}

// New builds an empty hub.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		replay:      make(map[replayKey]Event),
		log:         log.With().Str("component", "broadcast-hub").Logger(),
	}
}

// Subscribe registers a consumer for the given topics and returns it along
// with the replay cache entries for those topics. Registration and replay
// capture happen under one lock, so an event published concurrently with
// Subscribe is seen exactly once: either in the replay slice or on C.
func (h *Hub) Subscribe(topics []string) (*Subscriber, []Event) {
	sub := &Subscriber{
		ID:     uuid.New().String(),
		C:      make(chan Event, subscriberBufferSize),
		topics: make(map[string]bool, len(topics)),
		hub:    h,
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribers[sub] = true

	var cached []Event
	for key, ev := range h.replay {
		if sub.topics[key.topic] {
			cached = append(cached, ev)
		}
	}
	sort.Slice(cached, func(i, j int) bool { return cached[i].Timestamp.Before(cached[j].Timestamp) })
	h.log.Debug().Str("subscriber", sub.ID).Strs("topics", topics).Int("replayed", len(cached)).Msg("subscriber registered")
	return sub, cached
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.C)
	}
}

// Publish updates the replay cache and delivers the event to every current
// subscriber of its topic. Slow subscribers are dropped.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	key := replayKey{topic: ev.Topic, runID: ev.RunID}
	if ev.Platform != nil {
		key.platform = string(*ev.Platform)
	}

	// Update the replay cache and deliver under one lock, so a concurrent
	// Subscribe sees the event exactly once and no subscriber channel can be
	// closed mid-send. Slow subscribers are detached afterwards.
	var slow []*Subscriber
	h.mu.Lock()
	h.replay[key] = ev
	h.totalPublished++
	for sub := range h.subscribers {
		if !sub.topics[ev.Topic] {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range slow {
		h.mu.Lock()
		h.totalDropped++
		h.mu.Unlock()
		h.log.Warn().Str("subscriber", sub.ID).Msg("subscriber buffer full, disconnecting")
		sub.Close()
	}
}

// ForgetRun evicts a finished run's replay entries so late subscribers do not
// receive stale progress for terminated runs.
func (h *Hub) ForgetRun(runID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.replay {
		if key.runID == runID {
			delete(h.replay, key)
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Run blocks until ctx is cancelled, then closes every subscriber. It also
// logs hub metrics periodically.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-ticker.C:
			h.mu.RLock()
			h.log.Debug().
				Int("subscribers", len(h.subscribers)).
				Int64("published", h.totalPublished).
				Int64("dropped", h.totalDropped).
				Msg("hub metrics")
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log.Info().Int("subscribers", len(h.subscribers)).Msg("shutting down hub")
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.C)
	}
}
