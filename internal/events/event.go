package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Version       int64          `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
	Data          map[string]any `json:"data"`
}

// New builds a version 1 event for the aggregate identified by aggregateID.
func New(eventType, aggregateType string, aggregateID int64, data map[string]any) Event {
	return Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   strconv.FormatInt(aggregateID, 10),
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}
}
