package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/orchestrator"
	"github.com/XavierBriggs/fortuna/internal/runlog"
)

// ScrapeHandler serves the /scrape control surface.
type ScrapeHandler struct {
	orch *orchestrator.Orchestrator
	runs *runlog.Store
	log  zerolog.Logger
}

// NewScrapeHandler builds the scrape-control handler.
func NewScrapeHandler(orch *orchestrator.Orchestrator, runs *runlog.Store, log zerolog.Logger) *ScrapeHandler {
	return &ScrapeHandler{orch: orch, runs: runs, log: log.With().Str("component", "scrape-handler").Logger()}
}

// Routes mounts the scrape endpoints on a chi router.
func (h *ScrapeHandler) Routes(r chi.Router) {
	r.Post("/scrape", h.Trigger)
	r.Get("/scrape/runs", h.ListRuns)
	r.Get("/scrape/stats", h.Stats)
	r.Get("/scrape/{id}", h.GetRun)
	r.Get("/scrape/{id}/errors", h.ListErrors)
	r.Post("/scrape/{id}/retry", h.Retry)
}

type scrapeRequest struct {
	Platforms    []domain.Source `json:"platforms"`
	SportID      *int64          `json:"sport_id"`
	TournamentID *int64          `json:"tournament_id"`
	Timeout      int             `json:"timeout"`
	Detail       string          `json:"detail"`
}

// Trigger serves POST /scrape: it opens the run, returns {run_id}
// immediately, and the run continues in the background.
func (h *ScrapeHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	// An empty body means "scrape everything with defaults".
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondProblem(w, h.log, http.StatusBadRequest, "invalid request body", err)
		return
	}

	runID, err := h.orch.StartAsync(r.Context(), orchestrator.Input{
		Platforms:      req.Platforms,
		SportID:        req.SportID,
		TournamentID:   req.TournamentID,
		TimeoutSeconds: req.Timeout,
		Detail:         orchestrator.Detail(req.Detail),
		Trigger:        domain.TriggerManual,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		respondProblem(w, h.log, status, "failed to start scrape run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]int64{"run_id": runID})
}

// GetRun serves GET /scrape/{id}.
func (h *ScrapeHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.GetRun(ctx, runID)
	if err != nil {
		respondProblem(w, h.log, http.StatusInternalServerError, "failed to load run", err)
		return
	}
	if run == nil {
		respondProblem(w, h.log, http.StatusNotFound, "run not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// ListRuns serves GET /scrape/runs?limit&offset.
func (h *ScrapeHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := parseIntParam(r, "limit", 20)
	offset := parseIntParam(r, "offset", 0)

	runs, err := h.runs.ListRuns(ctx, limit, offset)
	if err != nil {
		respondProblem(w, h.log, http.StatusInternalServerError, "failed to list runs", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"count":  len(runs),
		"limit":  limit,
		"offset": offset,
	})
}

// Stats serves GET /scrape/stats.
func (h *ScrapeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.runs.Stats24h(ctx)
	if err != nil {
		respondProblem(w, h.log, http.StatusInternalServerError, "failed to compute run stats", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// ListErrors serves GET /scrape/{id}/errors for the analyst drill-in.
func (h *ScrapeHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	errs, err := h.runs.ListErrors(ctx, runID, parseIntParam(r, "limit", 50), parseIntParam(r, "offset", 0))
	if err != nil {
		respondProblem(w, h.log, http.StatusInternalServerError, "failed to list run errors", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"errors": errs,
		"count":  len(errs),
	})
}

type retryRequest struct {
	Platforms []domain.Source `json:"platforms"`
}

// Retry serves POST /scrape/{id}/retry: a new run restricted to the given
// platforms with trigger=retry.
func (h *ScrapeHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, h.log, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Platforms) == 0 {
		respondProblem(w, h.log, http.StatusBadRequest, "platforms is required", nil)
		return
	}

	newRunID, err := h.runs.RetryPlatforms(ctx, runID, req.Platforms)
	if err != nil {
		respondProblem(w, h.log, http.StatusBadRequest, "failed to open retry run", err)
		return
	}

	if err := h.orch.ExecuteAsync(newRunID, orchestrator.Input{
		Platforms: req.Platforms,
		Trigger:   domain.TriggerRetry,
	}); err != nil {
		respondProblem(w, h.log, http.StatusBadRequest, "failed to start retry run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]int64{"new_run_id": newRunID})
}

func (h *ScrapeHandler) runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondProblem(w, h.log, http.StatusBadRequest, "invalid run id", err)
		return 0, false
	}
	return runID, true
}
