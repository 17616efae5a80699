package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Priya8975/telltide-relay/internal/domain"
	"github.com/Priya8975/telltide-relay/internal/store"
)

type NotificationHandler struct {
	store        *store.NotificationStore
	maxBodyBytes int64
	logger       *slog.Logger
}

func NewNotificationHandler(s *store.NotificationStore, maxBodyBytes int64, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{store: s, maxBodyBytes: maxBodyBytes, logger: logger}
}

type ingestResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type listResponse struct {
	Notifications []domain.NotificationRecord `json:"notifications"`
}

// Ingest accepts any webhook body. Bodies that are not valid JSON are still
// recorded, with a null payload, so the viewer shows that something arrived.
func (h *NotificationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.logger.Warn("failed to read webhook body", "error", err)
		body = nil
	}

	payload := decodePayload(body)
	if bytes.Equal(payload, domain.NullPayload) && len(body) > 0 {
		h.logger.Warn("webhook body is not valid JSON, storing null payload", "bytes", len(body))
	}

	record := h.store.Publish(payload)

	h.logger.Info("webhook received",
		"notification_id", record.ID,
		"content_type", r.Header.Get("Content-Type"),
		"event", r.Header.Get("X-Webhook-Event"),
		"bytes", len(body),
	)

	respondJSON(w, http.StatusOK, ingestResponse{OK: true, ID: record.ID})
}

// List returns the current backlog, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications := h.store.List()
	if notifications == nil {
		notifications = []domain.NotificationRecord{}
	}
	respondJSON(w, http.StatusOK, listResponse{Notifications: notifications})
}

// decodePayload returns body compacted when it is valid JSON and a null
// payload otherwise.
func decodePayload(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.NullPayload
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return domain.NullPayload
	}
	return buf.Bytes()
}
