package history

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves the /events REST surface over the Service.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler creates the history handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "history-handler").Logger()}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/unmatched", h.UnmatchedEvents)
	r.Get("/events/coverage", h.Coverage)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/events/{id}/markets/{marketID}/history", h.OddsHistory)
	r.Get("/events/{id}/markets/{marketID}/margin-history", h.MarginHistory)
}

// ListEvents serves GET /events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	params := ListParams{
		KickoffFrom:    parseTimeParam(r, "kickoff_from"),
		KickoffTo:      parseTimeParam(r, "kickoff_to"),
		TournamentID:   parseInt64Param(r, "tournament_id"),
		SportID:        parseInt64Param(r, "sport_id"),
		MinBookmakers:  parseIntParam(r, "min_bookmakers", 0),
		IncludeStarted: r.URL.Query().Get("include_started") == "true",
		Page:           parseIntParam(r, "page", 1),
		PageSize:       parseIntParam(r, "page_size", defaultPageSize),
	}

	events, total, err := h.svc.ListEvents(ctx, params)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list events", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events":    events,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

// GetEvent serves GET /events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid event id", err)
		return
	}

	detail, err := h.svc.GetEventDetail(ctx, eventID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load event", err)
		return
	}
	if detail == nil {
		h.respondError(w, http.StatusNotFound, "event not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// OddsHistory serves GET /events/{id}/markets/{marketID}/history. The line
// query parameter is applied whenever supplied; omitting it on a specifier
// market interleaves lines.
func (h *Handler) OddsHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, ok := h.parseHistoryQuery(w, r)
	if !ok {
		return
	}

	points, err := h.svc.OddsHistory(ctx, q.eventID, q.marketID, q.bookmakerSlug, q.line, q.from, q.to)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load odds history", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":            q.eventID,
		"reference_market_id": q.marketID,
		"bookmaker":           q.bookmakerSlug,
		"line":                q.line,
		"points":              points,
	})
}

// MarginHistory serves GET /events/{id}/markets/{marketID}/margin-history.
func (h *Handler) MarginHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q, ok := h.parseHistoryQuery(w, r)
	if !ok {
		return
	}

	points, err := h.svc.MarginHistory(ctx, q.eventID, q.marketID, q.bookmakerSlug, q.line, q.from, q.to)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load margin history", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":            q.eventID,
		"reference_market_id": q.marketID,
		"bookmaker":           q.bookmakerSlug,
		"line":                q.line,
		"points":              points,
	})
}

// UnmatchedEvents serves GET /events/unmatched.
func (h *Handler) UnmatchedEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.svc.UnmatchedEvents(ctx, parseIntParam(r, "limit", defaultPageSize), parseIntParam(r, "offset", 0))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list unmatched events", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// Coverage serves GET /events/coverage.
func (h *Handler) Coverage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.svc.CoverageStats(ctx)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to compute coverage stats", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

type historyQuery struct {
	eventID       int64
	marketID      string
	bookmakerSlug string
	line          *float64
	from, to      time.Time
}

func (h *Handler) parseHistoryQuery(w http.ResponseWriter, r *http.Request) (historyQuery, bool) {
	var q historyQuery

	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid event id", err)
		return q, false
	}
	q.eventID = eventID

	q.marketID = chi.URLParam(r, "marketID")
	if q.marketID == "" {
		h.respondError(w, http.StatusBadRequest, "market id is required", nil)
		return q, false
	}

	q.bookmakerSlug = r.URL.Query().Get("bookmaker_slug")
	if q.bookmakerSlug == "" {
		h.respondError(w, http.StatusBadRequest, "bookmaker_slug is required", nil)
		return q, false
	}

	if lineStr := r.URL.Query().Get("line"); lineStr != "" {
		line, err := strconv.ParseFloat(lineStr, 64)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid line", err)
			return q, false
		}
		q.line = &line
	}

	now := time.Now().UTC()
	q.from = now.Add(-defaultWindow)
	q.to = now
	if from := parseTimeParam(r, "from"); from != nil {
		q.from = *from
	}
	if to := parseTimeParam(r, "to"); to != nil {
		q.to = *to
	}

	return q, true
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.log.Warn().Err(err).Int("status", status).Msg(message)
	}
	respondJSON(w, status, map[string]interface{}{
		"error_type":  http.StatusText(status),
		"message":     message,
		"recoverable": status >= 500,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseInt64Param(r *http.Request, param string) *int64 {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseTimeParam(r *http.Request, param string) *time.Time {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
