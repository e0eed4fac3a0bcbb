// fortuna-scrape runs one scrape end-to-end and exits with a status code the
// scheduler can act on: 0 completed, 1 partial, 2 failed, 3 invalid arguments.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/internal/broadcast"
	"github.com/XavierBriggs/fortuna/internal/config"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/logging"
	"github.com/XavierBriggs/fortuna/internal/matcher"
	normbet9ja "github.com/XavierBriggs/fortuna/internal/normalize/bet9ja"
	normreference "github.com/XavierBriggs/fortuna/internal/normalize/reference"
	normsportybet "github.com/XavierBriggs/fortuna/internal/normalize/sportybet"
	"github.com/XavierBriggs/fortuna/internal/normalize"
	"github.com/XavierBriggs/fortuna/internal/orchestrator"
	"github.com/XavierBriggs/fortuna/internal/registry"
	"github.com/XavierBriggs/fortuna/internal/runlog"
	"github.com/XavierBriggs/fortuna/internal/scrape"
	scrapebet9ja "github.com/XavierBriggs/fortuna/internal/scrape/bet9ja"
	scrapereference "github.com/XavierBriggs/fortuna/internal/scrape/reference"
	scrapesportybet "github.com/XavierBriggs/fortuna/internal/scrape/sportybet"
	"github.com/XavierBriggs/fortuna/internal/store"
)

const (
	exitCompleted = 0
	exitPartial   = 1
	exitFailed    = 2
	exitInvalid   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	platformsFlag := flag.String("platforms", "", "comma-separated platforms (default: all)")
	sportFlag := flag.Int64("sport", 0, "sport id to scrape (default: football)")
	tournamentFlag := flag.Int64("tournament", 0, "tournament id filter")
	timeoutFlag := flag.Int("timeout", 0, "run timeout in seconds [5, 300]")
	detailFlag := flag.String("detail", "full", "scrape depth: summary or full")
	flag.Parse()

	cfg := config.Load()
	log := logging.New("fortuna-scrape", cfg.LogJSON)

	input := orchestrator.Input{
		TimeoutSeconds: *timeoutFlag,
		Detail:         orchestrator.Detail(*detailFlag),
		Trigger:        domain.TriggerScheduled,
	}
	if *platformsFlag != "" {
		for _, p := range strings.Split(*platformsFlag, ",") {
			input.Platforms = append(input.Platforms, domain.Source(strings.TrimSpace(p)))
		}
	}
	if *sportFlag != 0 {
		input.SportID = sportFlag
	}
	if *tournamentFlag != 0 {
		input.TournamentID = tournamentFlag
	}

	ctx := context.Background()

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return exitFailed
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		log.Error().Err(err).Msg("failed to apply schema")
		return exitFailed
	}

	reg := registry.New(registry.DefaultDefinitions())

	refClient := scrapereference.New(cfg.ReferenceBaseURL)
	spoClient := scrapesportybet.New(cfg.SportybetBaseURL)
	b9jClient := scrapebet9ja.New(cfg.Bet9jaBaseURL)
	defer refClient.Close()
	defer spoClient.Close()
	defer b9jClient.Close()

	clients := map[domain.Source]scrape.Client{
		domain.SourceReference: refClient,
		domain.SourceSportybet: spoClient,
		domain.SourceBet9ja:    b9jClient,
	}
	normalizers := map[domain.Source]normalize.SourceNormalizer{
		domain.SourceReference: normreference.New(reg),
		domain.SourceSportybet: normsportybet.New(reg),
		domain.SourceBet9ja:    normbet9ja.New(reg),
	}

	hub := broadcast.New(log)
	orch := orchestrator.New(clients, normalizers, store.New(db), matcher.New(db), runlog.New(db), hub, nil, log)

	runID, status, err := orch.Run(ctx, input)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidInput) {
			log.Error().Err(err).Msg("invalid arguments")
			return exitInvalid
		}
		log.Error().Err(err).Msg("failed to open run")
		return exitFailed
	}

	log.Info().Int64("run_id", runID).Str("status", string(status)).Msg("scrape finished")

	switch status {
	case domain.RunStatusCompleted:
		return exitCompleted
	case domain.RunStatusPartial:
		return exitPartial
	default:
		return exitFailed
	}
}
