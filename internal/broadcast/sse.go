package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RunChecker reports whether a run exists and whether it has terminated.
// Satisfied by runlog.Store via a thin adapter in the API wiring.
type RunChecker interface {
	RunTerminated(ctx context.Context, runID int64) (exists bool, terminated bool, err error)
}

// SSEHandler serves GET /scrape/runs/{id}/progress as a server-sent event
// stream: one JSON progress event per message. A run that has already
// terminated answers 410 Gone.
type SSEHandler struct {
	hub  *Hub
	runs RunChecker
	log  zerolog.Logger
}

// NewSSEHandler builds the SSE binding over the hub.
func NewSSEHandler(hub *Hub, runs RunChecker, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, runs: runs, log: log.With().Str("component", "sse-handler").Logger()}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	exists, terminated, err := h.runs.RunTerminated(r.Context(), runID)
	if err != nil {
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if terminated {
		http.Error(w, "run already terminated", http.StatusGone)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub, replay := h.hub.Subscribe([]string{TopicScrapeProgress})
	defer sub.Close()

	for _, ev := range replay {
		if ev.RunID != runID {
			continue
		}
		if err := writeSSE(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.RunID != runID {
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
