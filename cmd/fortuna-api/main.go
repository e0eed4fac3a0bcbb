package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/internal/api"
	"github.com/XavierBriggs/fortuna/internal/broadcast"
	"github.com/XavierBriggs/fortuna/internal/cache"
	"github.com/XavierBriggs/fortuna/internal/config"
	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/history"
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

func main() {
	cfg := config.Load()
	log := logging.New("fortuna-api", cfg.LogJSON)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	log.Info().Msg("database ready")

	// Redis is optional: without it the snapshot cache and rate-limit
	// buckets are skipped and reads go straight to Postgres.
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err == nil {
			redisClient = c
			defer redisClient.Close()
			log.Info().Msg("redis ready")
		} else {
			log.Warn().Err(err).Msg("redis unreachable, running without cache")
		}
	}

	reg := registry.New(registry.DefaultDefinitions())
	log.Info().Int("markets", reg.Count()).Msg("market registry loaded")

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

	st := store.New(db)
	fixtures := matcher.New(db)
	runs := runlog.New(db)

	hub := broadcast.New(log)
	go hub.Run(ctx)

	pm := store.NewPartitionManager(db, cfg.RetentionDays, log)
	go pm.Run(ctx)

	var limiters map[domain.Source]orchestrator.Limiter
	var snapshots *cache.Snapshots
	if redisClient != nil {
		snapshots = cache.NewSnapshots(redisClient)
		limiters = make(map[domain.Source]orchestrator.Limiter, len(clients))
		for source, baseURL := range map[domain.Source]string{
			domain.SourceReference: cfg.ReferenceBaseURL,
			domain.SourceSportybet: cfg.SportybetBaseURL,
			domain.SourceBet9ja:    cfg.Bet9jaBaseURL,
		} {
			limiters[source] = cache.NewTokenBucket(redisClient, hostOf(baseURL), 600, time.Minute)
		}
	}

	orch := orchestrator.New(clients, normalizers, st, fixtures, runs, hub, limiters, log)

	histSvc := history.New(db, st, reg, snapshots)
	histHandler := history.NewHandler(histSvc, log)
	scrapeHandler := api.NewScrapeHandler(orch, runs, log)
	healthHandler := api.NewHealthHandler(db, clients, log)
	sseHandler := broadcast.NewSSEHandler(hub, api.NewRunChecker(runs), log)
	wsHandler := broadcast.NewWSHandler(hub, ctx, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.ServeHTTP)
	r.Get("/ws", wsHandler.ServeHTTP)
	r.Get("/scrape/runs/{id}/progress", sseHandler.ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		scrapeHandler.Routes(r)
		histHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Port).Msg("api listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal().Err(err).Msg("server error")

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown failed")
			srv.Close()
		}
		cancel()
	}

	log.Info().Msg("shutdown complete")
}

// requestLogger logs one line per request in the structured format.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
