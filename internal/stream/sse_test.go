package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type sseEvent struct {
	name string
	data string
}

func readSSEEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read event stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSE_HeadersSeedAndNotification(t *testing.T) {
	g, s := setupTestGateway(t, Config{})
	existing := s.Publish(json.RawMessage(`{"hello":"world"}`))

	server := httptest.NewServer(g)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache, no-transform" {
		t.Errorf("Cache-Control: got %q", cc)
	}
	if xa := resp.Header.Get("X-Accel-Buffering"); xa != "no" {
		t.Errorf("X-Accel-Buffering: got %q", xa)
	}

	reader := bufio.NewReader(resp.Body)

	seed := readSSEEvent(t, reader)
	if seed.name != EventSeed {
		t.Fatalf("expected seed event, got %q", seed.name)
	}
	var body SeedBody
	if err := json.Unmarshal([]byte(seed.data), &body); err != nil {
		t.Fatalf("failed to decode seed: %v", err)
	}
	if len(body.Notifications) != 1 || body.Notifications[0].ID != existing.ID {
		t.Fatalf("unexpected seed %+v", body.Notifications)
	}

	rec := s.Publish(json.RawMessage(`{"n":2}`))

	ev := readSSEEvent(t, reader)
	if ev.name != EventNotification {
		t.Fatalf("expected notification event, got %q", ev.name)
	}
	if !strings.Contains(ev.data, rec.ID) {
		t.Errorf("expected notification to contain %s, got %s", rec.ID, ev.data)
	}
}

func TestSSE_ClientDisconnectReleasesSubscription(t *testing.T) {
	g, s := setupTestGateway(t, Config{})

	server := httptest.NewServer(g)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	readSSEEvent(t, bufio.NewReader(resp.Body))

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for g.ActiveConnections() != 0 || s.Stats().Subscribers != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream not torn down: active=%d subscribers=%d", g.ActiveConnections(), s.Stats().Subscribers)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSSETransport_Format(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewSSETransport(rec)

	if err := tr.Send(Message{Event: EventPing, Data: json.RawMessage("123")}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got := rec.Body.String(); got != "event: ping\ndata: 123\n\n" {
		t.Errorf("unexpected frame %q", got)
	}
	if !rec.Flushed {
		t.Error("expected frame to be flushed")
	}
}
