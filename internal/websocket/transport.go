package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/telltide-relay/internal/stream"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512

	// A peer that misses this many stream pings in a row is considered gone.
	pongWaitPings = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // viewer may be served from another origin
	},
}

// Envelope is the JSON text frame carrying one stream message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Transport sends stream messages as WebSocket text frames.
type Transport struct {
	conn *websocket.Conn
}

func (t *Transport) Send(msg stream.Message) error {
	frame, err := json.Marshal(Envelope{Event: msg.Event, Data: msg.Data})
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", msg.Event, err)
	}

	deadline := time.Now().Add(writeWait)
	t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("writing %s frame: %w", msg.Event, err)
	}

	if msg.Event == stream.EventPing {
		if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			return fmt.Errorf("writing ping control frame: %w", err)
		}
	}
	return nil
}

// Handler serves the notification stream over WebSocket.
type Handler struct {
	gateway  *stream.Gateway
	logger   *slog.Logger
	pongWait time.Duration
}

func NewHandler(gateway *stream.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gateway:  gateway,
		logger:   logger,
		pongWait: pongWaitPings * gateway.PingInterval(),
	}
}

// ServeHTTP upgrades the connection and runs a gateway stream on it until
// the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go readPump(conn, h.pongWait, cancel)

	if err := h.gateway.Serve(ctx, &Transport{conn: conn}); err != nil {
		h.logger.Error("websocket stream error", "error", err)
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}

// readPump discards client frames and cancels the stream once the
// connection breaks or stays silent for longer than pongWait.
func readPump(conn *websocket.Conn, pongWait time.Duration, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
