// Package orchestrator drives one ScrapeRun end-to-end (component D): it
// fans out to every requested platform in parallel, walks each platform
// through the discovering/scraping/mapping/storing phases, aggregates
// partial failures, and publishes progress throughout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/internal/broadcast"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/matcher"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/scrape"
)

// Detail selects scrape depth: summary stops after discovery, full walks the
// whole per-event pipeline.
type Detail string

const (
	DetailSummary Detail = "summary"
	DetailFull    Detail = "full"
)

const (
	minTimeoutSeconds     = 5
	maxTimeoutSeconds     = 300
	defaultTimeoutSeconds = 30
)

// ErrInvalidInput marks a rejected scrape request (CLI exit code 3).
var ErrInvalidInput = errors.New("invalid scrape input")

// Input describes one requested scrape run.
type Input struct {
	Platforms      []domain.Source
	SportID        *int64
	TournamentID   *int64
	TimeoutSeconds int
	Detail         Detail
	Trigger        domain.RunTrigger
}

// RunLog is the slice of component I the orchestrator drives.
type RunLog interface {
	OpenRun(ctx context.Context, trigger domain.RunTrigger, platforms []domain.Source) (int64, error)
	RecordPhase(ctx context.Context, runID int64, platform *domain.Source, phase domain.Phase, eventsProcessed *int, message string, errDetails *string) error
	SetPlatformStatus(ctx context.Context, runID int64, platform domain.Source, status domain.PlatformStatus) error
	RecordPlatformTiming(ctx context.Context, runID int64, platform domain.Source, durationMs int64, eventsCount int) error
	AddEventCounts(ctx context.Context, runID int64, scraped, failed int) error
	RecordError(ctx context.Context, runID int64, platform *domain.Source, errType domain.ErrorType, message string) error
	CloseRun(ctx context.Context, runID int64, finalStatus domain.RunStatus) error
}

// SnapshotWriter is the slice of component E the orchestrator writes through.
type SnapshotWriter interface {
	EnsureBookmaker(ctx context.Context, source domain.Source) (domain.Bookmaker, error)
	AppendSnapshot(ctx context.Context, eventID, bookmakerID int64, captureTime time.Time, markets []domain.MarketOdds) (int64, error)
}

// FixtureResolver is the slice of component F the orchestrator resolves through.
type FixtureResolver interface {
	Resolve(ctx context.Context, f matcher.Fixture) (int64, error)
}

// Publisher is the slice of component H the orchestrator publishes to.
type Publisher interface {
	Publish(ev broadcast.Event)
	ForgetRun(runID int64)
}

// Limiter bounds outbound request rate per source host. Optional.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Orchestrator wires the platform clients and normalizers to storage,
// matching, run metadata, and progress publication.
type Orchestrator struct {
	clients     map[domain.Source]scrape.Client
	normalizers map[domain.Source]normalize.SourceNormalizer
	store       SnapshotWriter
	fixtures    FixtureResolver
	runs        RunLog
	hub         Publisher
	limiters    map[domain.Source]Limiter
	log         zerolog.Logger
}

// New builds an Orchestrator. limiters may be nil or sparse; platforms
// without a limiter are paced only by the fetch semaphore.
func New(
	clients map[domain.Source]scrape.Client,
	normalizers map[domain.Source]normalize.SourceNormalizer,
	store SnapshotWriter,
	fixtures FixtureResolver,
	runs RunLog,
	hub Publisher,
	limiters map[domain.Source]Limiter,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		clients:     clients,
		normalizers: normalizers,
		store:       store,
		fixtures:    fixtures,
		runs:        runs,
		hub:         hub,
		limiters:    limiters,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
}

// validate normalizes an Input in place, applying defaults and rejecting
// out-of-range values.
func (o *Orchestrator) validate(input *Input) error {
	if len(input.Platforms) == 0 {
		input.Platforms = []domain.Source{domain.SourceReference, domain.SourceSportybet, domain.SourceBet9ja}
	}
	seen := make(map[domain.Source]bool, len(input.Platforms))
	for _, p := range input.Platforms {
		if _, ok := o.clients[p]; !ok {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate platform %q", ErrInvalidInput, p)
		}
		seen[p] = true
	}

	if input.TimeoutSeconds == 0 {
		input.TimeoutSeconds = defaultTimeoutSeconds
	}
	if input.TimeoutSeconds < minTimeoutSeconds || input.TimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("%w: timeout %ds outside [%d, %d]", ErrInvalidInput, input.TimeoutSeconds, minTimeoutSeconds, maxTimeoutSeconds)
	}

	if input.Detail == "" {
		input.Detail = DetailFull
	}
	if input.Detail != DetailSummary && input.Detail != DetailFull {
		return fmt.Errorf("%w: unknown detail %q", ErrInvalidInput, input.Detail)
	}

	if input.Trigger == "" {
		input.Trigger = domain.TriggerManual
	}
	return nil
}

// Open validates the input and creates the run record.
func (o *Orchestrator) Open(ctx context.Context, input *Input) (int64, error) {
	if err := o.validate(input); err != nil {
		return 0, err
	}
	return o.runs.OpenRun(ctx, input.Trigger, input.Platforms)
}

// Run drives a scrape synchronously: open, execute, return the terminal status.
func (o *Orchestrator) Run(ctx context.Context, input Input) (int64, domain.RunStatus, error) {
	runID, err := o.Open(ctx, &input)
	if err != nil {
		return 0, "", err
	}
	status := o.Execute(ctx, runID, input)
	return runID, status, nil
}

// StartAsync opens the run and executes it in the background, detached from
// the caller's (request) context. Returns the run id immediately.
func (o *Orchestrator) StartAsync(ctx context.Context, input Input) (int64, error) {
	runID, err := o.Open(ctx, &input)
	if err != nil {
		return 0, err
	}

	go o.Execute(context.Background(), runID, input)
	return runID, nil
}

// ExecuteAsync runs an already-opened run (the retry path) in the background.
func (o *Orchestrator) ExecuteAsync(runID int64, input Input) error {
	if err := o.validate(&input); err != nil {
		return err
	}
	go o.Execute(context.Background(), runID, input)
	return nil
}

// Execute drives an opened run to its terminal state. The run's deadline
// covers all platforms; platforms still running at the deadline are failed
// with a timeout error. Execution always terminates the run record.
func (o *Orchestrator) Execute(ctx context.Context, runID int64, input Input) domain.RunStatus {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(input.TimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	o.log.Info().Int64("run_id", runID).Interface("platforms", input.Platforms).Msg("run starting")

	results := make(chan bool, len(input.Platforms))
	for _, platform := range input.Platforms {
		platform := platform
		go func() {
			results <- o.runPlatform(runCtx, runID, platform, input, start)
		}()
	}

	completed := 0
	for range input.Platforms {
		if <-results {
			completed++
		}
	}

	var final domain.RunStatus
	switch completed {
	case len(input.Platforms):
		final = domain.RunStatusCompleted
	case 0:
		final = domain.RunStatusFailed
	default:
		final = domain.RunStatusPartial
	}

	// Use the parent context for bookkeeping: the run deadline may already
	// have fired, but the terminal state must still be recorded.
	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer closeCancel()

	if err := o.runs.CloseRun(closeCtx, runID, final); err != nil {
		o.log.Error().Err(err).Int64("run_id", runID).Msg("failed to close run")
	}

	o.hub.Publish(broadcast.Event{
		Topic:     broadcast.TopicScrapeProgress,
		RunID:     runID,
		Phase:     string(final),
		ElapsedMs: time.Since(start).Milliseconds(),
		Message:   fmt.Sprintf("run finished %s (%d/%d platforms completed)", final, completed, len(input.Platforms)),
	})
	o.hub.ForgetRun(runID)

	o.log.Info().Int64("run_id", runID).Str("status", string(final)).Dur("elapsed", time.Since(start)).Msg("run finished")
	return final
}
