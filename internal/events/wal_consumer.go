package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/destel/rill"
	"github.com/vadiminshakov/gowal"
)

// typecheck
var _ EventConsumer = new(WALConsumer)

type WALConsumerOptions struct {
	BufferSize       int
	BatchSize        int
	BatchTimeout     time.Duration
	WorkerCount      int
	InsertTimeout    time.Duration
	WALDir           string
	WALPrefix        string
	SegmentThreshold int
	MaxSegments      int
	IsInSyncDiskMode bool
	// FlushThreshold is how many processed entries may accumulate before the
	// processed index is written to the state file.
	FlushThreshold uint64
	FlushInterval  time.Duration
}

func (o *WALConsumerOptions) defaults() {
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
	if o.WALDir == "" {
		o.WALDir = "./wal"
	}
	if o.WALPrefix == "" {
		o.WALPrefix = "event_"
	}
	if o.SegmentThreshold == 0 {
		o.SegmentThreshold = 1000
	}
	if o.MaxSegments == 0 {
		o.MaxSegments = 10
	}
	if o.FlushThreshold == 0 {
		o.FlushThreshold = 1000
	}
	if o.FlushInterval == 0 {
		o.FlushInterval = 5 * time.Second
	}
}

type walItem struct {
	index uint64
	event Event
}

// WALConsumer appends every event to a write-ahead log before queueing it
// for the repository. Entries past the last processed index are replayed on
// Start, so an event accepted by Consume survives a crash.
type WALConsumer struct {
	eventRepository EventRepository
	logger          *slog.Logger
	opts            WALConsumerOptions
	stateFile       string

	walMu sync.Mutex
	wal   *gowal.Wal

	workCh   chan walItem
	doneCh   chan uint64
	workerWg sync.WaitGroup
	coordWg  sync.WaitGroup

	// Items that did not fit in workCh wait here until the requeuer hands
	// them to the workers. Every written index must reach doneCh.
	spillMu   sync.Mutex
	spill     []walItem
	spillCh   chan struct{}
	stopCh    chan struct{}
	requeueWg sync.WaitGroup

	processed atomic.Uint64
	flushed   atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func NewWALConsumer(eventRepository EventRepository, logger *slog.Logger, opts WALConsumerOptions) (*WALConsumer, error) {
	opts.defaults()

	if err := os.MkdirAll(opts.WALDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              opts.WALDir,
		Prefix:           opts.WALPrefix,
		SegmentThreshold: opts.SegmentThreshold,
		MaxSegments:      opts.MaxSegments,
		IsInSyncDiskMode: opts.IsInSyncDiskMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create WAL: %w", err)
	}

	return &WALConsumer{
		eventRepository: eventRepository,
		logger:          logger,
		opts:            opts,
		stateFile:       filepath.Join(opts.WALDir, "processor.state"),
		wal:             wal,
		workCh:          make(chan walItem, opts.BufferSize),
		doneCh:          make(chan uint64, opts.BufferSize),
		spillCh:         make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
	}, nil
}

func (c *WALConsumer) Start(ctx context.Context) {
	last, err := readProcessedIndex(c.stateFile)
	if err != nil {
		c.logger.Warn("failed to read processed index, replaying whole WAL", "error", err)
		last = 0
	}

	items, skipped, last := c.backlog(last)
	c.processed.Store(last)
	c.flushed.Store(last)

	c.coordWg.Add(1)
	go c.coordinator()

	for range c.opts.WorkerCount {
		c.workerWg.Add(1)
		go c.worker(ctx)
	}

	c.requeueWg.Add(1)
	go c.requeuer()

	if len(items) > 0 || len(skipped) > 0 {
		c.logger.Info("replaying WAL entries", "after", last, "count", len(items), "skipped", len(skipped))
	}
	for _, index := range skipped {
		c.doneCh <- index
	}
	for _, item := range items {
		c.enqueue(item)
	}
}

func (c *WALConsumer) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	// The requeuer drains the spill before workCh closes.
	close(c.stopCh)
	c.requeueWg.Wait()
	close(c.workCh)

	c.workerWg.Wait()
	close(c.doneCh)
	c.coordWg.Wait()

	if err := writeProcessedIndex(c.stateFile, c.processed.Load()); err != nil {
		c.logger.Error("failed to write processed index", "error", err)
	}

	c.walMu.Lock()
	defer c.walMu.Unlock()
	if err := c.wal.Close(); err != nil {
		c.logger.Error("failed to close WAL", "error", err)
	}
}

// Consume returns once the event is in the WAL. Delivery to the repository
// happens in the background.
func (c *WALConsumer) Consume(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConsumerStopped
	}

	c.walMu.Lock()
	index := c.wal.CurrentIndex() + 1
	err = c.wal.Write(index, event.ID, payload)
	c.walMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write to WAL: %w", err)
	}

	c.enqueue(walItem{index: index, event: event})
	return nil
}

func (c *WALConsumer) enqueue(item walItem) {
	c.spillMu.Lock()
	// Items already spilled go first so workCh never overtakes a backlog.
	if len(c.spill) == 0 {
		select {
		case c.workCh <- item:
			c.spillMu.Unlock()
			return
		default:
		}
	}
	c.spill = append(c.spill, item)
	c.spillMu.Unlock()

	select {
	case c.spillCh <- struct{}{}:
	default:
	}
}

// requeuer moves spilled items into workCh, blocking as long as needed. On
// stop it empties the spill before returning.
func (c *WALConsumer) requeuer() {
	defer c.requeueWg.Done()

	for {
		select {
		case <-c.spillCh:
			c.drainSpill()
		case <-c.stopCh:
			c.drainSpill()
			return
		}
	}
}

func (c *WALConsumer) drainSpill() {
	for {
		c.spillMu.Lock()
		if len(c.spill) == 0 {
			c.spillMu.Unlock()
			return
		}
		item := c.spill[0]
		c.spillMu.Unlock()

		c.workCh <- item

		c.spillMu.Lock()
		c.spill = c.spill[1:]
		c.spillMu.Unlock()
	}
}

// backlog reads the WAL entries past last. Undecodable entries are returned
// as skipped so their indexes still count as processed. last is lowered when
// the WAL is behind the state file and raised past segments already evicted.
func (c *WALConsumer) backlog(last uint64) ([]walItem, []uint64, uint64) {
	c.walMu.Lock()
	defer c.walMu.Unlock()

	var (
		items   []walItem
		skipped []uint64
	)

	if current := c.wal.CurrentIndex(); current < last {
		c.logger.Warn("processed index is ahead of the WAL, resetting", "processed", last, "wal_index", current)
		last = current
	}

	first := uint64(0)
	for msg := range c.wal.Iterator() {
		if msg.Index() <= last {
			continue
		}
		if first == 0 {
			first = msg.Index()
		}
		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("skipping undecodable WAL entry", "index", msg.Index(), "error", err)
			skipped = append(skipped, msg.Index())
			continue
		}
		items = append(items, walItem{index: msg.Index(), event: event})
	}

	if first > last+1 {
		c.logger.Warn("WAL entries missing before first retained segment", "processed", last, "first", first)
		last = first - 1
	}
	return items, skipped, last
}

func (c *WALConsumer) worker(ctx context.Context) {
	defer c.workerWg.Done()

	batches := rill.Batch(rill.FromChan(c.workCh, nil), c.opts.BatchSize, c.opts.BatchTimeout)
	for batch := range batches {
		if len(batch.Value) == 0 {
			continue
		}

		events := make([]Event, len(batch.Value))
		for i, item := range batch.Value {
			events[i] = item.event
		}

		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.InsertTimeout)
		if err := c.eventRepository.BulkInsert(insertCtx, events); err != nil {
			c.logger.Error("failed to bulk insert events", "error", err, "count", len(events))
		}
		cancel()

		for _, item := range batch.Value {
			c.doneCh <- item.index
		}
	}
}

// coordinator advances the processed index over contiguous completions.
// Workers finish batches out of order, so later indexes wait in pending
// until the gap before them closes.
func (c *WALConsumer) coordinator() {
	defer c.coordWg.Done()

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	pending := make(map[uint64]struct{})

	for {
		select {
		case index, ok := <-c.doneCh:
			if !ok {
				return
			}
			current := c.processed.Load()
			if index <= current {
				continue
			}
			pending[index] = struct{}{}
			for {
				if _, ok := pending[current+1]; !ok {
					break
				}
				delete(pending, current+1)
				current++
			}
			c.processed.Store(current)

			if current-c.flushed.Load() >= c.opts.FlushThreshold {
				c.flush(current)
			}

		case <-ticker.C:
			if current := c.processed.Load(); current > c.flushed.Load() {
				c.flush(current)
			}
		}
	}
}

func (c *WALConsumer) flush(index uint64) {
	if err := writeProcessedIndex(c.stateFile, index); err != nil {
		c.logger.Error("failed to write processed index", "error", err, "index", index)
		return
	}
	c.flushed.Store(index)
}

func readProcessedIndex(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

func writeProcessedIndex(path string, index uint64) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(index, 10)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
