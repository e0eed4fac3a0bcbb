package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/internal/domain"
	"github.com/XavierBriggs/fortuna/internal/scrape"
)

// HealthHandler serves GET /health: database connectivity plus one probe
// per platform client.
type HealthHandler struct {
	db      *sql.DB
	clients map[domain.Source]scrape.Client
	log     zerolog.Logger
}

// NewHealthHandler builds the health handler.
func NewHealthHandler(db *sql.DB, clients map[domain.Source]scrape.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{db: db, clients: clients, log: log.With().Str("component", "health-handler").Logger()}
}

type platformHealth struct {
	Platform       domain.Source `json:"platform"`
	Status         string        `json:"status"`
	ResponseTimeMs int64         `json:"response_time_ms"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn().Err(err).Msg("database health check failed")
		dbStatus = "down"
	}

	platforms := make([]platformHealth, 0, len(h.clients))
	healthy := 0
	for source, client := range h.clients {
		hr := client.CheckHealth(ctx)
		status := "ok"
		if hr.OK {
			healthy++
		} else {
			status = "down"
		}
		platforms = append(platforms, platformHealth{Platform: source, Status: status, ResponseTimeMs: hr.LatencyMs})
	}

	overall := "healthy"
	statusCode := http.StatusOK
	switch {
	case dbStatus != "ok" || healthy == 0:
		overall = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case healthy < len(h.clients):
		overall = "degraded"
	}

	respondJSON(w, statusCode, map[string]interface{}{
		"status":    overall,
		"platforms": platforms,
		"database":  map[string]string{"status": dbStatus},
	})
}
