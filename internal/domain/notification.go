package domain

import (
	"encoding/json"
	"time"
)

// NotificationRecord is one inbound webhook payload as received by the relay.
// Records are immutable once created.
type NotificationRecord struct {
	ID         string          `json:"id"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NullPayload is stored when an inbound body is empty or not valid JSON.
var NullPayload = json.RawMessage("null")
