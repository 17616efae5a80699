package sender

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Webhook is one payload to post to a relay's ingest endpoint.
type Webhook struct {
	EventType string
	Payload   json.RawMessage
	Attempt   int
}

// Result describes the outcome of one send.
type Result struct {
	ID           string
	StatusCode   int
	ResponseBody string
	Duration     time.Duration
}

// Sender posts webhooks to a single target URL, signing the body with
// HMAC-SHA256 when a secret is configured.
type Sender struct {
	httpClient *http.Client
	targetURL  string
	secret     string
	logger     *slog.Logger
}

func New(targetURL, secret string, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		targetURL: targetURL,
		secret:    secret,
		logger:    logger,
	}
}

// Send posts the webhook and returns the response status. A non-2xx status
// is not an error; transport failures are.
func (s *Sender) Send(ctx context.Context, hook Webhook) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	if hook.Attempt == 0 {
		hook.Attempt = 1
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.targetURL, bytes.NewReader(hook.Payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", hook.EventType)
	req.Header.Set("X-Webhook-ID", id)
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(hook.Attempt))
	if s.secret != "" {
		req.Header.Set("X-Webhook-Signature", computeHMAC(hook.Payload, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	// Read response body (limit to 1KB)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	result := &Result{
		ID:           id,
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
		Duration:     time.Since(start),
	}

	s.logger.Info("webhook sent",
		"webhook_id", id,
		"event_type", hook.EventType,
		"status_code", resp.StatusCode,
		"response_time_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// SamplePayload builds a demo payload resembling an on-chain alert.
func SamplePayload(eventType string, seq int, now time.Time) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"event":     eventType,
		"sequence":  seq,
		"timestamp": now.UTC().Format(time.RFC3339),
		"data": map[string]any{
			"txHash": "0x" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			"amount": strconv.Itoa(seq*1000) + "000000000000000",
		},
	})
	return data
}

// computeHMAC generates an HMAC-SHA256 signature for the payload.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
