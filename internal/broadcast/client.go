package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next client message (ping) from the peer.
	pongWait = 60 * time.Second

	// Send protocol-level pings with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// clientMessage is what a WebSocket peer may send: the application-level
// keepalive ({"type":"ping"}) the wire contract requires at least every 30s.
type clientMessage struct {
	Type string `json:"type"`
}

// wsConn is one WebSocket subscriber connection: it bridges a hub Subscriber
// to the socket with the read/write pump pair.
type wsConn struct {
	conn *websocket.Conn
	sub  *Subscriber
	pong chan struct{}
	log  zerolog.Logger
}

func newWSConn(conn *websocket.Conn, sub *Subscriber, log zerolog.Logger) *wsConn {
	return &wsConn{
		conn: conn,
		sub:  sub,
		pong: make(chan struct{}, 8),
		log:  log.With().Str("ws_client", sub.ID).Logger(),
	}
}

// readPump consumes client messages, answering application-level pings and
// refreshing the read deadline on each.
func (c *wsConn) readPump(ctx context.Context) {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg clientMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.log.Debug().Err(err).Msg("unexpected close")
				}
				return
			}
			c.conn.SetReadDeadline(time.Now().Add(pongWait))

			if msg.Type == "ping" {
				select {
				case c.pong <- struct{}{}:
				default:
				}
			}
		}
	}
}

// writePump forwards hub events to the socket as typed envelopes and keeps
// the connection alive with protocol pings.
func (c *wsConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeEvent(ev); err != nil {
				c.log.Debug().Err(err).Msg("write error")
				return
			}

		case <-c.pong:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) writeEvent(ev Event) error {
	env := Envelope{Type: ev.Topic, Timestamp: time.Now().UTC(), Data: ev}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
