package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/SebastienMelki/keyportal/internal/events"
)

// jetStreamPublisher is the slice of jetstream.JetStream the publisher uses.
type jetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher publishes key events to NATS JetStream.
type Publisher struct {
	js         jetStreamPublisher
	streamName string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPublisher creates a new key event publisher. Each publish is bounded by
// timeout when it is positive.
func NewPublisher(js jetstream.JetStream, streamName string, timeout time.Duration, logger *slog.Logger) *Publisher {
	return newPublisher(js, streamName, timeout, logger)
}

func newPublisher(js jetStreamPublisher, streamName string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		js:         js,
		streamName: streamName,
		timeout:    timeout,
		logger:     logger.With("component", "publisher"),
	}
}

// PublishKeyEvent publishes one key event as JSON on its derived subject.
// The event ID is used as the JetStream message ID so retried publishes are
// deduplicated by the server.
func (p *Publisher) PublishKeyEvent(ctx context.Context, event events.KeyEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	subject := event.Subject()
	ack, err := p.js.Publish(ctx, subject, data,
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.streamName),
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if ack == nil || ack.Stream != p.streamName {
		return fmt.Errorf("%w: %s", ErrNoStreamAck, p.streamName)
	}

	p.logger.Debug("event published",
		"event_id", event.ID,
		"subject", subject,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
	)

	return nil
}
