package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_SendsCount(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	err := run([]string{"-url", server.URL, "-count", "3", "-interval", "1ms"}, testLogger())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got := received.Load(); got != 3 {
		t.Errorf("expected 3 webhooks, got %d", got)
	}
}

func TestRun_ReportsFailedWebhooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := run([]string{"-url", server.URL, "-count", "2", "-interval", "1ms"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "2 of 2") {
		t.Errorf("expected failure count in error, got %v", err)
	}
}

func TestRun_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"payload and file", []string{"-payload", "{}", "-file", "x.json"}},
		{"missing file", []string{"-file", "does-not-exist.json"}},
		{"unknown flag", []string{"-bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args, testLogger()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
