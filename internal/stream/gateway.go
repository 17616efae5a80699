package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Priya8975/telltide-relay/internal/domain"
	"github.com/Priya8975/telltide-relay/internal/store"
	"github.com/google/uuid"
)

// Event names sent on a stream.
const (
	EventSeed         = "seed"
	EventNotification = "notification"
	EventPing         = "ping"
)

const (
	DefaultPingInterval = 15 * time.Second
	DefaultBufferSize   = 64
	MaxSendFailures     = 3
)

var (
	ErrConnectionClosed = errors.New("stream connection closed")
	ErrQueueFull        = errors.New("stream queue full")
)

// Message is one event pushed to a client. Data is a JSON document.
type Message struct {
	Event string
	Data  json.RawMessage
}

// Transport writes messages to one remote client.
type Transport interface {
	Send(msg Message) error
}

// Source is the part of the notification store a gateway needs.
type Source interface {
	List() []domain.NotificationRecord
	Subscribe(sub store.Subscriber) func()
}

type SeedBody struct {
	Notifications []domain.NotificationRecord `json:"notifications"`
}

type Config struct {
	PingInterval time.Duration
	BufferSize   int
}

// Gateway turns store subscriptions into long-lived push streams: a seed of
// the current backlog, then every new notification, plus periodic pings.
type Gateway struct {
	source  Source
	cfg     Config
	logger  *slog.Logger
	active  atomic.Int64
	dropped atomic.Uint64
}

func NewGateway(source Source, cfg Config, logger *slog.Logger) *Gateway {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{source: source, cfg: cfg, logger: logger}
}

// PingInterval returns the effective interval between ping events.
func (g *Gateway) PingInterval() time.Duration {
	return g.cfg.PingInterval
}

// ActiveConnections returns the number of streams currently being served.
func (g *Gateway) ActiveConnections() int {
	return int(g.active.Load())
}

// DroppedMessages returns how many notifications were discarded because a
// stream's queue was full.
func (g *Gateway) DroppedMessages() uint64 {
	return g.dropped.Load()
}

// connection is the store subscriber for one stream. Notify never blocks the
// publisher: records go into a buffered queue drained by Serve.
type connection struct {
	id      string
	queue   chan domain.NotificationRecord
	done    chan struct{}
	closeMu sync.Once
	gateway *Gateway
}

func (c *connection) Notify(record domain.NotificationRecord) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.queue <- record:
		return nil
	default:
		c.gateway.dropped.Add(1)
		return fmt.Errorf("stream %s: %w", c.id, ErrQueueFull)
	}
}

func (c *connection) close() {
	c.closeMu.Do(func() { close(c.done) })
}

// Serve runs one stream until ctx is cancelled or the transport fails
// MaxSendFailures times in a row. It returns nil on client disconnect.
func (g *Gateway) Serve(ctx context.Context, t Transport) error {
	conn := &connection{
		id:      uuid.NewString()[:8],
		queue:   make(chan domain.NotificationRecord, g.cfg.BufferSize),
		done:    make(chan struct{}),
		gateway: g,
	}
	logger := g.logger.With("stream_id", conn.id)

	g.active.Add(1)
	logger.Info("stream opened", "active_streams", g.active.Load())

	// Subscribe before reading the seed so nothing published in between is
	// lost; records that also made it into the seed are skipped below.
	unsubscribe := g.source.Subscribe(conn)
	defer func() {
		unsubscribe()
		conn.close()
		g.active.Add(-1)
		logger.Info("stream closed", "active_streams", g.active.Load())
	}()

	backlog := g.source.List()
	seen := make(map[string]struct{}, len(backlog))
	for _, rec := range backlog {
		seen[rec.ID] = struct{}{}
	}

	seed, err := json.Marshal(SeedBody{Notifications: nonNil(backlog)})
	if err != nil {
		return fmt.Errorf("encoding seed: %w", err)
	}
	if err := t.Send(Message{Event: EventSeed, Data: seed}); err != nil {
		logger.Warn("failed to send seed", "error", err)
		return nil
	}
	logger.Debug("seed sent", "notifications", len(backlog))

	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	failures := 0
	send := func(msg Message) bool {
		if err := t.Send(msg); err != nil {
			failures++
			logger.Warn("stream send failed", "event", msg.Event, "error", err, "consecutive_failures", failures)
			return failures < MaxSendFailures
		}
		failures = 0
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case rec := <-conn.queue:
			if _, ok := seen[rec.ID]; ok {
				delete(seen, rec.ID)
				continue
			}

			data, err := json.Marshal(rec)
			if err != nil {
				logger.Error("failed to encode notification", "notification_id", rec.ID, "error", err)
				continue
			}
			if !send(Message{Event: EventNotification, Data: data}) {
				return nil
			}

		case now := <-ticker.C:
			ping := strconv.AppendInt(nil, now.UnixMilli(), 10)
			if !send(Message{Event: EventPing, Data: ping}) {
				return nil
			}
		}
	}
}

func nonNil(records []domain.NotificationRecord) []domain.NotificationRecord {
	if records == nil {
		return []domain.NotificationRecord{}
	}
	return records
}
