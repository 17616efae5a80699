package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const writeWait = 10 * time.Second

// SSETransport writes messages as text/event-stream frames and flushes each
// one immediately.
type SSETransport struct {
	w  io.Writer
	rc *http.ResponseController
}

func NewSSETransport(w http.ResponseWriter) *SSETransport {
	return &SSETransport{w: w, rc: http.NewResponseController(w)}
}

func (s *SSETransport) Send(msg Message) error {
	if err := s.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data); err != nil {
		return fmt.Errorf("writing %s event: %w", msg.Event, err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing %s event: %w", msg.Event, err)
	}
	return nil
}

// ServeHTTP streams notifications to the client as server-sent events until
// the request is cancelled.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := g.Serve(r.Context(), NewSSETransport(w)); err != nil {
		g.logger.Error("sse stream error", "error", err)
	}
}
