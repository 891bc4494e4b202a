package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

// ErrNotRunning is returned by Add when the batcher is not started.
var ErrNotRunning = errors.New("batcher is not running")

const flushTimeout = 30 * time.Second

// BatcherConfig holds configuration for the journal batcher
type BatcherConfig struct {
	// BatchSize is the number of rows that triggers an immediate flush (default: 10)
	BatchSize int

	// FlushInterval is the longest a row waits before being flushed (default: 2s)
	FlushInterval time.Duration
}

// DefaultBatcherConfig returns sensible defaults
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		BatchSize:     10,
		FlushInterval: 2 * time.Second,
	}
}

type pendingRow struct {
	row  sheets.JournalRow
	done chan error
}

// Batcher coalesces journal rows into a single append per flush. Each Add
// waits for the flush that carries its row, so callers learn whether the
// row was written.
type Batcher struct {
	journal sheets.JournalWriter
	config  BatcherConfig
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	pending []pendingRow
	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewBatcher(journal sheets.JournalWriter, config BatcherConfig, logger *log.Logger) *Batcher {
	def := DefaultBatcherConfig()
	if config.BatchSize < 1 {
		config.BatchSize = def.BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Batcher{
		journal: journal,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the flush loop. Returns an error if already running.
func (b *Batcher) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("batcher is already running")
	}
	b.running = true
	b.flushCh = make(chan struct{}, 1)
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.mu.Unlock()

	go b.runLoop(ctx)

	b.logger.InfoContext(ctx, "Journal batcher started",
		"batch_size", b.config.BatchSize,
		"flush_interval", b.config.FlushInterval)
	return nil
}

// Stop refuses new rows, flushes what is pending and waits for the loop to
// exit.
func (b *Batcher) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopCh)

	select {
	case <-b.doneCh:
		b.logger.InfoContext(ctx, "Journal batcher stopped gracefully")
		return nil
	case <-ctx.Done():
		b.logger.WarnContext(ctx, "Journal batcher stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the batcher is currently running
func (b *Batcher) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Pending returns the number of rows waiting for a flush.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Add queues row and blocks until it is flushed or ctx is done. A row whose
// caller gave up may still be written by the next flush.
func (b *Batcher) Add(ctx context.Context, row sheets.JournalRow) error {
	done := make(chan error, 1)

	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrNotRunning
	}
	b.pending = append(b.pending, pendingRow{row: row, done: done})
	full := len(b.pending) >= b.config.BatchSize
	b.mu.Unlock()

	if full {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batcher) runLoop(ctx context.Context) {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			b.flush(ctx)
			return
		case <-ctx.Done():
			b.flush(ctx)
			return
		case <-b.flushCh:
			b.flush(ctx)
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

// flush writes everything pending in one call and reports the outcome to
// every waiting Add. It outlives ctx cancellation so shutdown still drains.
func (b *Batcher) flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	rows := make([]sheets.JournalRow, len(batch))
	for i, p := range batch {
		rows[i] = p.row
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	start := time.Now()
	err := b.journal.AppendRows(flushCtx, rows)
	if err != nil {
		b.logger.ErrorContext(ctx, "Journal flush failed",
			log.FieldOperation, log.OpExport,
			log.FieldCount, len(rows),
			log.FieldError, err)
	} else {
		b.logger.DebugContext(ctx, "Journal flushed",
			log.FieldOperation, log.OpExport,
			log.FieldCount, len(rows),
			log.FieldDuration, time.Since(start).Milliseconds())
	}

	for _, p := range batch {
		p.done <- err
	}
}
