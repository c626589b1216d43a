package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhirschtritt/blogapi/internal/events"
)

const eventColumns = 7

// typecheck
var _ events.EventRepository = new(DBEventsRepository)

type DBEventsRepository struct {
	db DBTX
}

func NewDBEventsRepository(db DBTX) *DBEventsRepository {
	return &DBEventsRepository{
		db: db,
	}
}

func (r *DBEventsRepository) Insert(ctx context.Context, event events.Event) error {
	return r.BulkInsert(ctx, []events.Event{event})
}

// BulkInsert writes all events in a single statement. Events already stored
// (same event_id) are skipped so a replayed WAL batch is harmless.
func (r *DBEventsRepository) BulkInsert(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}

	values := make([]string, len(batch))
	args := make([]any, 0, len(batch)*eventColumns)

	for i, event := range batch {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}

		n := i * eventColumns
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args,
			event.ID, event.Type, event.AggregateType, event.AggregateID, event.Version, event.Timestamp, data)
	}

	query := `INSERT INTO events (event_id, type, aggregate_type, aggregate_id, version, timestamp, data) VALUES ` +
		strings.Join(values, ", ") +
		` ON CONFLICT (event_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert events: %w", err)
	}

	return nil
}
