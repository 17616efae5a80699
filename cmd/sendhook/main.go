// Command sendhook fires demo webhooks at a relay's ingest endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/telltide-relay/internal/sender"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(os.Args[1:], logger); err != nil {
		logger.Error("sendhook failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("sendhook", flag.ContinueOnError)
	url := fs.String("url", getEnv("RELAY_URL", "http://localhost:8080/api/demo-callback"), "ingest endpoint")
	secret := fs.String("secret", os.Getenv("WEBHOOK_SECRET"), "HMAC secret for X-Webhook-Signature (optional)")
	event := fs.String("event", "transfer.detected", "event type header and sample event name")
	payload := fs.String("payload", "", "raw JSON payload; a sample is generated when empty")
	file := fs.String("file", "", "read the payload from this file")
	count := fs.Int("count", 1, "number of webhooks to send")
	interval := fs.Duration("interval", 500*time.Millisecond, "delay between webhooks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body, err := loadPayload(*payload, *file)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := sender.New(*url, *secret, logger)

	failed := 0
	for i := 1; i <= *count; i++ {
		hook := sender.Webhook{EventType: *event, Payload: body}
		if hook.Payload == nil {
			hook.Payload = sender.SamplePayload(*event, i, time.Now())
		}

		result, err := s.Send(ctx, hook)
		if err != nil {
			failed++
			fmt.Printf("[#%d] error: %v\n", i, err)
		} else {
			if result.StatusCode >= 300 {
				failed++
			}
			fmt.Printf("[#%d] %d in %dms id=%s %s\n", i, result.StatusCode, result.Duration.Milliseconds(), result.ID, result.ResponseBody)
		}

		if i == *count {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(*interval):
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d webhooks failed", failed, *count)
	}
	return nil
}

// loadPayload returns nil when neither a payload nor a file is given. Any
// bytes are accepted: the relay stores non-JSON bodies as null, which is
// useful to demo.
func loadPayload(raw, file string) (json.RawMessage, error) {
	switch {
	case raw != "" && file != "":
		return nil, fmt.Errorf("use either -payload or -file, not both")
	case raw != "":
		return json.RawMessage(raw), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading payload file: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
