package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/destel/rill"
)

type ConsumerOptions struct {
	BufferSize    int
	BatchSize     int
	BatchTimeout  time.Duration
	WorkerCount   int
	InsertTimeout time.Duration
}

func (o *ConsumerOptions) defaults() {
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout == 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = 4
	}
	if o.InsertTimeout == 0 {
		o.InsertTimeout = 5 * time.Second
	}
}

// typecheck
var _ EventConsumer = new(GoChannelConsumer)

// GoChannelConsumer buffers events in memory and writes them to the
// repository in batches. Buffered events are lost if the process dies.
type GoChannelConsumer struct {
	eventRepository EventRepository
	logger          *slog.Logger
	workCh          chan Event
	opts            ConsumerOptions
	workerWg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewConsumer(eventRepository EventRepository, logger *slog.Logger, opts ConsumerOptions) *GoChannelConsumer {
	opts.defaults()

	return &GoChannelConsumer{
		eventRepository: eventRepository,
		logger:          logger,
		workCh:          make(chan Event, opts.BufferSize),
		opts:            opts,
	}
}

func (c *GoChannelConsumer) Start(ctx context.Context) {
	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}
}

// Stop closes the buffer and waits until the workers have flushed it.
func (c *GoChannelConsumer) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.workCh)
	c.mu.Unlock()

	c.workerWg.Wait()
}

func (c *GoChannelConsumer) Consume(ctx context.Context, event Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConsumerStopped
	}

	select {
	case c.workCh <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrConsumerFull
	}
}

func (c *GoChannelConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}
		// Batches still in flight at shutdown must be written after ctx is cancelled.
		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.InsertTimeout)
		if err := c.eventRepository.BulkInsert(insertCtx, batch.Value); err != nil {
			// TODO: retry failed batches instead of dropping them
			c.logger.Error("failed to bulk insert events", "error", err, "count", len(batch.Value))
		}
		cancel()
	}
}
