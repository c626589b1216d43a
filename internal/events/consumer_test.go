package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	mu      sync.Mutex
	events  []Event
	batches int
}

func (r *memoryRepository) Insert(ctx context.Context, event Event) error {
	return r.BulkInsert(ctx, []Event{event})
}

func (r *memoryRepository) BulkInsert(_ context.Context, batch []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, batch...)
	r.batches++
	return nil
}

func (r *memoryRepository) ids() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]bool, len(r.events))
	for _, e := range r.events {
		ids[e.ID] = true
	}
	return ids
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	event := New("user.created", "user", 42, map[string]any{"name": "Ana"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "user.created", event.Type)
	assert.Equal(t, "user", event.AggregateType)
	assert.Equal(t, "42", event.AggregateID)
	assert.Equal(t, int64(1), event.Version)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Minute)
	assert.NotEqual(t, event.ID, New("user.created", "user", 42, nil).ID)
}

func TestGoChannelConsumer_FlushesOnStop(t *testing.T) {
	repo := &memoryRepository{}
	consumer := NewConsumer(repo, discardLogger(), ConsumerOptions{
		BatchSize:    10,
		BatchTimeout: 10 * time.Millisecond,
		WorkerCount:  2,
	})
	consumer.Start(context.Background())

	sent := make([]Event, 25)
	for i := range sent {
		sent[i] = New("post.created", "post", int64(i+1), nil)
		require.NoError(t, consumer.Consume(context.Background(), sent[i]))
	}

	consumer.Stop()

	ids := repo.ids()
	assert.Len(t, ids, len(sent))
	for _, e := range sent {
		assert.True(t, ids[e.ID], "event %s not stored", e.ID)
	}
}

func TestGoChannelConsumer_Full(t *testing.T) {
	repo := &memoryRepository{}
	// Not started, so nothing drains the buffer.
	consumer := NewConsumer(repo, discardLogger(), ConsumerOptions{BufferSize: 1})

	require.NoError(t, consumer.Consume(context.Background(), New("user.created", "user", 1, nil)))
	err := consumer.Consume(context.Background(), New("user.created", "user", 2, nil))
	assert.ErrorIs(t, err, ErrConsumerFull)
}

func TestGoChannelConsumer_ConsumeAfterStop(t *testing.T) {
	consumer := NewConsumer(&memoryRepository{}, discardLogger(), ConsumerOptions{})
	consumer.Start(context.Background())
	consumer.Stop()
	consumer.Stop()

	err := consumer.Consume(context.Background(), New("user.created", "user", 1, nil))
	assert.ErrorIs(t, err, ErrConsumerStopped)
}

type fakeNATSConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (c *fakeNATSConn) Publish(subj string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeNATSConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSConsumer(t *testing.T) {
	conn := &fakeNATSConn{}
	consumer := &NATSConsumer{conn: conn, prefix: "blogapi", logger: discardLogger()}

	event := New("user.deleted", "user", 3, map[string]any{"email": "ana@x.com"})
	require.NoError(t, consumer.Consume(context.Background(), event))

	assert.Equal(t, []string{"blogapi.user.deleted"}, conn.subjects)
	assert.Contains(t, string(conn.payloads[0]), `"aggregate_id":"3"`)

	consumer.Stop()
	assert.True(t, conn.drained)
}

func TestNATSConsumer_Errors(t *testing.T) {
	conn := &fakeNATSConn{err: errors.New("nats: connection closed")}
	consumer := &NATSConsumer{conn: conn, logger: discardLogger()}

	err := consumer.Consume(context.Background(), New("post.created", "post", 1, nil))
	assert.ErrorContains(t, err, "failed to publish event")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, consumer.Consume(ctx, New("post.created", "post", 1, nil)), context.Canceled)

	assert.Equal(t, "post.created", consumer.Subject("post.created"))
}

func TestNopConsumer(t *testing.T) {
	var c EventConsumer = NopConsumer{}
	c.Start(context.Background())
	assert.NoError(t, c.Consume(context.Background(), New("user.created", "user", 1, nil)))
	c.Stop()
}
