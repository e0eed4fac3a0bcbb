package broadcast

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Internal tool; the trust boundary is the network.
		return true
	},
}

// WSHandler serves GET /ws?topics=scrape_progress,odds_updates. On connect
// the subscriber immediately receives the replay cache for its topics, then
// live events as envelopes.
type WSHandler struct {
	hub *Hub
	ctx context.Context
	log zerolog.Logger
}

// NewWSHandler builds the WebSocket binding over the hub. ctx is the
// process lifetime context, not a request context: hijacked connections
// outlive their originating request.
func NewWSHandler(hub *Hub, ctx context.Context, log zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, ctx: ctx, log: log.With().Str("component", "ws-handler").Logger()}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics := parseTopics(r.URL.Query().Get("topics"))
	if len(topics) == 0 {
		topics = []string{TopicScrapeProgress}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub, replay := h.hub.Subscribe(topics)
	c := newWSConn(conn, sub, h.log)

	// Replay before the pumps start so the cached events are the first
	// frames on the wire.
	for _, ev := range replay {
		if err := c.writeEvent(ev); err != nil {
			sub.Close()
			conn.Close()
			return
		}
	}

	go c.writePump(h.ctx)
	go c.readPump(h.ctx)

	h.log.Debug().Str("subscriber", sub.ID).Strs("topics", topics).Msg("websocket connected")
}

func parseTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}
