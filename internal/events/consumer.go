package events

import (
	"context"
	"errors"
)

var (
	ErrConsumerFull    = errors.New("event consumer is full")
	ErrConsumerStopped = errors.New("event consumer is stopped")
)

type EventConsumer interface {
	Consume(ctx context.Context, event Event) error
	Start(ctx context.Context)
	Stop()
}

type EventRepository interface {
	Insert(ctx context.Context, event Event) error
	BulkInsert(ctx context.Context, events []Event) error
}

// typecheck
var _ EventConsumer = NopConsumer{}

// NopConsumer drops every event.
type NopConsumer struct{}

func (NopConsumer) Consume(context.Context, Event) error { return nil }
func (NopConsumer) Start(context.Context)                {}
func (NopConsumer) Stop()                                {}
