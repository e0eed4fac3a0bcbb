package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/XavierBriggs/fortuna/internal/apperror"
	"github.com/XavierBriggs/fortuna/internal/broadcast"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/matcher"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/scrape/httpx"
)

// defaultListing is the listing scraped when no sport is requested
// (football, the only sport the mapping table currently covers).
const defaultListing = "1"

// toMarketOdds converts normalizer output into the domain.MarketOdds rows
// that the store persists.
func toMarketOdds(markets []normalize.MappedMarket) []domain.MarketOdds {
	out := make([]domain.MarketOdds, 0, len(markets))
	for _, m := range markets {
		outcomes := make([]domain.Outcome, 0, len(m.Outcomes))
		for _, o := range m.Outcomes {
			outcomes = append(outcomes, domain.Outcome{
				Name:   o.Name,
				Odds:   o.Odds,
				Active: o.Active,
			})
		}
		out = append(out, domain.MarketOdds{
			ReferenceMarketID:   m.ReferenceMarketID,
			ReferenceMarketName: m.ReferenceMarketName,
			Line:                m.Line,
			Outcomes:            outcomes,
			Margin:              m.Margin,
		})
	}
	return out
}

// runPlatform walks one platform through its pipeline. Returns true when the
// platform completed. A platform's failure never cancels its siblings.
func (o *Orchestrator) runPlatform(ctx context.Context, runID int64, platform domain.Source, input Input, runStart time.Time) (ok bool) {
	start := time.Now()
	stored := 0
	failed := 0

	log := o.log.With().Int64("run_id", runID).Str("platform", string(platform)).Logger()

	// Timing is recorded even for failed platforms so the run's
	// platform_timings map has one entry per requested platform.
	defer func() {
		o.recordTiming(ctx, runID, platform, time.Since(start), stored)
	}()

	fail := func(phase domain.Phase, err error) bool {
		errType, errInfo := classify(ctx, err)
		log.Warn().Err(err).Str("phase", string(phase)).Msg("platform failed")

		bg := detachedCtx(ctx)
		if rErr := o.runs.RecordError(bg, runID, &platform, errType, err.Error()); rErr != nil {
			log.Error().Err(rErr).Msg("failed to record platform error")
		}
		if sErr := o.runs.SetPlatformStatus(bg, runID, platform, domain.PlatformFailed); sErr != nil {
			log.Error().Err(sErr).Msg("failed to set platform status")
		}
		o.emit(bg, runID, &platform, string(phase), 0, 0, stored, runStart, "platform failed: "+err.Error(), errInfo)
		return false
	}

	bookmaker, err := o.store.EnsureBookmaker(ctx, platform)
	if err != nil {
		return fail(domain.PhaseDiscovering, err)
	}

	if err := o.runs.SetPlatformStatus(ctx, runID, platform, domain.PlatformActive); err != nil {
		return fail(domain.PhaseDiscovering, err)
	}

	// Phase: discovering.
	o.phase(ctx, runID, platform, domain.PhaseDiscovering, nil, "listing events", runStart)

	client := o.clients[platform]
	listing := defaultListing
	if input.SportID != nil {
		listing = strconv.FormatInt(*input.SportID, 10)
	}
	summaries, err := client.FetchEvents(ctx, listing)
	if err != nil {
		return fail(domain.PhaseDiscovering, err)
	}
	log.Info().Int("events", len(summaries)).Msg("discovered events")

	if input.Detail == DetailSummary {
		stored = len(summaries)
		return o.finishPlatform(ctx, runID, platform, stored, runStart)
	}

	// Phase: scraping. Per-event detail fetches run under the bounded
	// semaphore with inter-request pacing; an optional rate-limit bucket
	// gates each acquisition on top.
	count := len(summaries)
	o.phase(ctx, runID, platform, domain.PhaseScraping, &count, fmt.Sprintf("fetching %d events", count), runStart)

	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ExternalEventID
	}

	limiter := o.limiters[platform]
	fetched := httpx.FetchAll(ctx, ids, func(ctx context.Context, id string) (normalize.RawEvent, error) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return normalize.RawEvent{}, err
			}
		}
		return client.FetchEvent(ctx, id)
	})

	var raws []normalize.RawEvent
	for _, r := range fetched {
		if r.Err != nil {
			failed++
			errType, _ := classify(ctx, r.Err)
			o.runs.RecordError(detachedCtx(ctx), runID, &platform, errType, fmt.Sprintf("event %s: %v", ids[r.Index], r.Err))
			continue
		}
		raw := r.Value
		// Detail payloads may omit the kickoff; the listing row has it.
		if raw.KickoffTime.IsZero() {
			raw.KickoffTime = summaries[r.Index].KickoffTime
		}
		raws = append(raws, raw)
	}

	if len(raws) == 0 && len(summaries) > 0 {
		return fail(domain.PhaseScraping, apperror.Network(fmt.Sprintf("all %d event fetches failed", len(summaries)), nil))
	}

	// Phase: mapping. Per-market failures drop the market, never the event.
	o.phase(ctx, runID, platform, domain.PhaseMapping, &count, "normalizing markets", runStart)

	normalizer := o.normalizers[platform]
	type mappedEvent struct {
		raw     normalize.RawEvent
		markets []normalize.MappedMarket
	}
	var mapped []mappedEvent
	for _, raw := range raws {
		markets, mapErrs := normalizer.Normalize(ctx, raw)
		for _, mErr := range mapErrs {
			o.runs.RecordError(detachedCtx(ctx), runID, &platform, domain.ErrMapping, mErr.Error())
		}
		if len(markets) == 0 {
			failed++
			continue
		}
		mapped = append(mapped, mappedEvent{raw: raw, markets: markets})
	}

	// Phase: storing. Each event resolves to its canonical fixture and
	// appends one snapshot in its own transaction; a storage failure drops
	// that event and the platform continues.
	storedCount := len(mapped)
	o.phase(ctx, runID, platform, domain.PhaseStoring, &storedCount, "persisting snapshots", runStart)

	captureTime := time.Now().UTC()
	for _, me := range mapped {
		eventID, err := o.fixtures.Resolve(ctx, matcher.Fixture{
			BookmakerID:     bookmaker.ID,
			ExternalEventID: me.raw.ExternalEventID,
			CorrelationID:   me.raw.CorrelationID,
			HomeTeam:        me.raw.HomeTeam,
			AwayTeam:        me.raw.AwayTeam,
			KickoffTime:     me.raw.KickoffTime,
			SportID:         input.SportID,
			TournamentID:    input.TournamentID,
		})
		if err != nil {
			failed++
			o.runs.RecordError(detachedCtx(ctx), runID, &platform, domain.ErrStorage, fmt.Sprintf("event %s: %v", me.raw.ExternalEventID, err))
			continue
		}

		snapshotID, err := o.store.AppendSnapshot(ctx, eventID, bookmaker.ID, captureTime, toMarketOdds(me.markets))
		if err != nil {
			failed++
			o.runs.RecordError(detachedCtx(ctx), runID, &platform, domain.ErrStorage, fmt.Sprintf("event %s: %v", me.raw.ExternalEventID, err))
			continue
		}
		stored++

		o.hub.Publish(broadcast.Event{
			Topic:      broadcast.TopicOddsUpdates,
			RunID:      runID,
			Platform:   &platform,
			Bookmaker:  string(platform),
			SnapshotID: snapshotID,
			Message:    fmt.Sprintf("snapshot %d stored for event %d", snapshotID, eventID),
		})
	}

	bg := detachedCtx(ctx)
	o.runs.AddEventCounts(bg, runID, stored, failed)

	if stored == 0 && len(mapped) > 0 {
		return fail(domain.PhaseStoring, apperror.Storage("no snapshots persisted", nil))
	}
	if ctx.Err() != nil {
		return fail(domain.PhaseStoring, ctx.Err())
	}

	return o.finishPlatform(ctx, runID, platform, stored, runStart)
}

func (o *Orchestrator) finishPlatform(ctx context.Context, runID int64, platform domain.Source, events int, runStart time.Time) bool {
	bg := detachedCtx(ctx)
	if err := o.runs.SetPlatformStatus(bg, runID, platform, domain.PlatformCompleted); err != nil {
		o.log.Error().Err(err).Str("platform", string(platform)).Msg("failed to set platform status")
	}
	o.emit(bg, runID, &platform, "completed", events, events, events, runStart, "platform completed", nil)
	return true
}

// phase records a platform's transition in the run log and THEN publishes
// it, so late subscribers reading run state and catching the next event see
// consistent information.
func (o *Orchestrator) phase(ctx context.Context, runID int64, platform domain.Source, phase domain.Phase, count *int, message string, runStart time.Time) {
	if err := o.runs.RecordPhase(ctx, runID, &platform, phase, count, message, nil); err != nil {
		o.log.Error().Err(err).Str("platform", string(platform)).Str("phase", string(phase)).Msg("failed to record phase")
	}

	total := 0
	if count != nil {
		total = *count
	}
	o.emit(ctx, runID, &platform, string(phase), 0, total, total, runStart, message, nil)
}

func (o *Orchestrator) emit(_ context.Context, runID int64, platform *domain.Source, phase string, current, total, eventsCount int, runStart time.Time, message string, errInfo *broadcast.ErrorInfo) {
	o.hub.Publish(broadcast.Event{
		Topic:       broadcast.TopicScrapeProgress,
		RunID:       runID,
		Platform:    platform,
		Phase:       phase,
		Current:     current,
		Total:       total,
		EventsCount: eventsCount,
		ElapsedMs:   time.Since(runStart).Milliseconds(),
		Message:     message,
		Error:       errInfo,
	})
}

func (o *Orchestrator) recordTiming(ctx context.Context, runID int64, platform domain.Source, elapsed time.Duration, events int) {
	if err := o.runs.RecordPlatformTiming(detachedCtx(ctx), runID, platform, elapsed.Milliseconds(), events); err != nil {
		o.log.Error().Err(err).Str("platform", string(platform)).Msg("failed to record platform timing")
	}
}

// classify maps an error to the §7 taxonomy for ScrapeError rows and
// progress events.
func classify(ctx context.Context, err error) (domain.ErrorType, *broadcast.ErrorInfo) {
	errType := domain.ErrNetwork
	recoverable := true

	var ae *apperror.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		errType = domain.ErrTimeout
		recoverable = false
	case errors.As(err, &ae):
		errType = ae.Type
		recoverable = ae.Recoverable
	}

	return errType, &broadcast.ErrorInfo{Type: errType, Message: err.Error(), Recoverable: recoverable}
}

// detachedCtx keeps values but drops the run deadline, so bookkeeping writes
// survive a platform timing out.
func detachedCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
