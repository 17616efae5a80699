package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Priya8975/telltide-relay/internal/domain"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of recent notifications kept in the backlog.
const DefaultCapacity = 50

// Subscriber receives every notification published after it was registered.
// Notify is called synchronously from Publish and must not block.
type Subscriber interface {
	Notify(record domain.NotificationRecord) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(record domain.NotificationRecord) error

func (f SubscriberFunc) Notify(record domain.NotificationRecord) error {
	return f(record)
}

// Stats is a point-in-time view of the store used by the metrics endpoint.
type Stats struct {
	BacklogSize      int    `json:"backlog_size"`
	Capacity         int    `json:"capacity"`
	Subscribers      int    `json:"subscribers"`
	TotalPublished   uint64 `json:"total_published"`
	FailedDeliveries uint64 `json:"failed_deliveries"`
}

type subscription struct {
	id  uint64
	sub Subscriber
}

// NotificationStore holds the bounded, newest-first backlog of inbound
// webhook payloads and fans each new one out to the registered subscribers.
//
// The backlog and subscriber slices are copy-on-write: they are replaced,
// never modified, so slices handed out by List or captured by an in-flight
// fan-out stay valid.
type NotificationStore struct {
	mu      sync.Mutex
	backlog []domain.NotificationRecord
	subs    []subscription
	nextSub uint64

	// fanoutMu serializes deliveries so every subscriber sees publish order.
	fanoutMu sync.Mutex

	capacity  int
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	published atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a NotificationStore.
type Option func(*NotificationStore)

// WithCapacity overrides the backlog bound. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *NotificationStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *NotificationStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *NotificationStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *NotificationStore) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewNotificationStore creates an empty store.
func NewNotificationStore(opts ...Option) *NotificationStore {
	s := &NotificationStore{
		capacity: DefaultCapacity,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish records a payload and delivers it to every current subscriber.
// A nil, empty or malformed payload is stored as JSON null. Publish never fails:
// subscriber errors and panics are logged and counted, not returned.
func (s *NotificationStore) Publish(payload json.RawMessage) domain.NotificationRecord {
	if len(payload) == 0 || !json.Valid(payload) {
		payload = domain.NullPayload
	}

	s.fanoutMu.Lock()
	defer s.fanoutMu.Unlock()

	s.mu.Lock()
	record := domain.NotificationRecord{
		ID:         s.newID(),
		ReceivedAt: s.now().UTC(),
		Payload:    payload,
	}
	if len(s.backlog) > 0 && record.ReceivedAt.Before(s.backlog[0].ReceivedAt) {
		record.ReceivedAt = s.backlog[0].ReceivedAt
	}

	keep := min(len(s.backlog), s.capacity-1)
	next := make([]domain.NotificationRecord, 0, keep+1)
	next = append(next, record)
	next = append(next, s.backlog[:keep]...)
	s.backlog = next

	subs := s.subs
	s.mu.Unlock()

	s.published.Add(1)
	s.logger.Debug("notification published",
		"notification_id", record.ID,
		"backlog_size", len(next),
		"subscribers", len(subs),
	)

	for _, entry := range subs {
		s.deliver(entry, record)
	}

	return record
}

func (s *NotificationStore) deliver(entry subscription, record domain.NotificationRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			s.logger.Warn("subscriber panicked during delivery",
				"subscription_id", entry.id,
				"notification_id", record.ID,
				"error", fmt.Sprint(r),
			)
		}
	}()

	if err := entry.sub.Notify(record); err != nil {
		s.failed.Add(1)
		s.logger.Debug("subscriber delivery failed",
			"subscription_id", entry.id,
			"notification_id", record.ID,
			"error", err,
		)
	}
}

// List returns the backlog, newest first. The slice is shared and must be
// treated as read-only.
func (s *NotificationStore) List() []domain.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog
}

// Subscribe registers sub for all notifications published after this call
// returns. The returned function removes the subscription; calling it more
// than once is a no-op. It does not wait for an in-flight Publish, so a
// single racing delivery may still reach sub after it returns.
func (s *NotificationStore) Subscribe(sub Subscriber) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	next := make([]subscription, len(s.subs), len(s.subs)+1)
	copy(next, s.subs)
	s.subs = append(next, subscription{id: id, sub: sub})
	count := len(s.subs)
	s.mu.Unlock()

	s.logger.Debug("subscriber added", "subscription_id", id, "subscribers", count)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *NotificationStore) unsubscribe(id uint64) {
	s.mu.Lock()
	next := make([]subscription, 0, len(s.subs))
	for _, entry := range s.subs {
		if entry.id != id {
			next = append(next, entry)
		}
	}
	s.subs = next
	count := len(s.subs)
	s.mu.Unlock()

	s.logger.Debug("subscriber removed", "subscription_id", id, "subscribers", count)
}

// Stats returns current counters for the store.
func (s *NotificationStore) Stats() Stats {
	s.mu.Lock()
	backlog, subs := len(s.backlog), len(s.subs)
	s.mu.Unlock()

	return Stats{
		BacklogSize:      backlog,
		Capacity:         s.capacity,
		Subscribers:      subs,
		TotalPublished:   s.published.Load(),
		FailedDeliveries: s.failed.Load(),
	}
}
