package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"camrec/internal/assembly"
	"camrec/internal/config"
	"camrec/internal/logging"
	"camrec/internal/recordings"
)

// TypeRecordingCommitted is emitted after a recording reaches the metadata sink.
const TypeRecordingCommitted = "recording.committed"

// Event is the JSON document published for each committed recording.
type Event struct {
	Type      string            `json:"type"`
	RunID     string            `json:"run_id"`
	Frames    int               `json:"frames"`
	FPS       int               `json:"fps"`
	Recording recordings.Record `json:"recording"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// New builds the publisher selected by cfg.Events.Backend.
func New(ctx context.Context, cfg *config.Config) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case "", config.EventsNone:
		return Nop{}, nil
	case config.EventsRedis:
		return NewRedisPublisher(ctx, RedisOptions{
			Addr:     cfg.Events.RedisAddr,
			Password: cfg.Events.RedisPassword,
			Channel:  cfg.Events.RedisChannel,
		})
	case config.EventsAMQP:
		return NewAMQPPublisher(AMQPOptions{
			URL:        cfg.Events.AMQPURL,
			Exchange:   cfg.Events.AMQPExchange,
			RoutingKey: cfg.Events.AMQPRoutingKey,
		})
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Events.Backend)
	}
}

// FromCommitted converts an assembler commit into an event.
func FromCommitted(c assembly.Committed, now time.Time) Event {
	return Event{
		Type:      TypeRecordingCommitted,
		RunID:     c.RunID,
		Frames:    c.Frames,
		FPS:       c.FPS,
		Recording: c.Record,
		EmittedAt: now.UTC(),
	}
}

func encode(evt Event) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return body, nil
}

// Hook returns an assembler commit hook that publishes each recording with a
// bounded timeout. Publish failures are logged and never fail the run.
func Hook(pub Publisher, timeout time.Duration, logger *slog.Logger) func(context.Context, assembly.Committed) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger = logging.NewComponentLogger(logger, "events")
	return func(ctx context.Context, c assembly.Committed) {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := pub.Publish(pubCtx, FromCommitted(c, time.Now())); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "recording event publish failed", "event_publish_failed",
				logging.Int64(logging.FieldRecordingID, c.Record.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the events broker connection"),
				logging.String(logging.FieldImpact, "downstream consumers miss this recording"),
			)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
