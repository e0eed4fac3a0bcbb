package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/internal/domain"
)

func testHub() *Hub {
	return New(zerolog.Nop())
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	h := testHub()
	sub, replay := h.Subscribe([]string{TopicScrapeProgress})
	defer sub.Close()

	if len(replay) != 0 {
		t.Fatalf("fresh hub should have empty replay, got %d events", len(replay))
	}

	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 1, Phase: "discovering"})

	select {
	case ev := <-sub.C:
		if ev.RunID != 1 || ev.Phase != "discovering" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("publish should stamp a timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// A subscriber that connects after a publish but before the next publish
// receives the last published event for its topics immediately.
func TestReplayOnLateSubscribe(t *testing.T) {
	h := testHub()
	ref := domain.SourceReference

	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 7, Platform: &ref, Phase: "discovering"})
	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 7, Platform: &ref, Phase: "scraping"})

	sub, replay := h.Subscribe([]string{TopicScrapeProgress})
	defer sub.Close()

	if len(replay) != 1 {
		t.Fatalf("expected 1 replayed event per (topic, run, platform), got %d", len(replay))
	}
	if replay[0].Phase != "scraping" {
		t.Errorf("replay should carry the last event, got phase %q", replay[0].Phase)
	}
}

func TestReplayKeyedPerPlatform(t *testing.T) {
	h := testHub()
	ref := domain.SourceReference
	spo := domain.SourceSportybet

	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 7, Platform: &ref, Phase: "storing"})
	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 7, Platform: &spo, Phase: "scraping"})

	sub, replay := h.Subscribe([]string{TopicScrapeProgress})
	defer sub.Close()

	if len(replay) != 2 {
		t.Fatalf("expected one replay entry per platform, got %d", len(replay))
	}
}

func TestReplayFiltersByTopic(t *testing.T) {
	h := testHub()

	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 1, Phase: "scraping"})
	h.Publish(Event{Topic: TopicOddsUpdates, RunID: 1, SnapshotID: 42, Bookmaker: "sportybet"})

	sub, replay := h.Subscribe([]string{TopicOddsUpdates})
	defer sub.Close()

	if len(replay) != 1 {
		t.Fatalf("expected 1 odds_updates replay event, got %d", len(replay))
	}
	if replay[0].SnapshotID != 42 {
		t.Errorf("wrong replayed event: %+v", replay[0])
	}

	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 1, Phase: "storing"})
	select {
	case ev := <-sub.C:
		t.Errorf("odds_updates subscriber received scrape_progress event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	h := testHub()
	sub, _ := h.Subscribe([]string{TopicScrapeProgress})

	// Never drain: fill the buffer and one more to trigger the tail-drop.
	for i := 0; i < subscriberBufferSize+1; i++ {
		h.Publish(Event{Topic: TopicScrapeProgress, RunID: int64(i)})
	}

	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("slow subscriber should be disconnected, %d still registered", got)
	}

	// Its channel must be closed so pumps terminate.
	for range sub.C {
	}
}

func TestForgetRunEvictsReplay(t *testing.T) {
	h := testHub()

	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 3, Phase: "storing"})
	h.Publish(Event{Topic: TopicScrapeProgress, RunID: 4, Phase: "scraping"})
	h.ForgetRun(3)

	sub, replay := h.Subscribe([]string{TopicScrapeProgress})
	defer sub.Close()

	if len(replay) != 1 || replay[0].RunID != 4 {
		t.Errorf("expected only run 4's replay to remain, got %+v", replay)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := testHub()
	sub, _ := h.Subscribe([]string{TopicScrapeProgress})

	sub.Close()
	sub.Close()

	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", got)
	}
}
