package domain

import (
	"context"
	"log/slog"

	"github.com/zhirschtritt/blogapi/internal/events"
)

// publisher hands mutation events to the consumer. The write has already
// succeeded by the time it runs, so failures are logged and dropped.
type publisher struct {
	consumer events.EventConsumer
	logger   *slog.Logger
}

func newPublisher(consumer events.EventConsumer, logger *slog.Logger) *publisher {
	if consumer == nil {
		consumer = events.NopConsumer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &publisher{consumer: consumer, logger: logger}
}

func (p *publisher) publish(ctx context.Context, event events.Event) {
	if err := p.consumer.Consume(ctx, event); err != nil {
		p.logger.Warn("failed to publish event",
			"error", err,
			"event_type", event.Type,
			"aggregate_id", event.AggregateID)
	}
}
