package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/legalvault/internal/audit/domain"
)

// Store persists flushed event batches (§4.5.4). The query surface
// (§4.5.3) is on QueryStore, which extends Store.
type Store interface {
	AppendBatch(ctx context.Context, events []*domain.Event) error
}

// BufferConfig configures the buffer's accumulate-then-flush behavior
// (§4.5.1 steps 4-5, §6.5 audit config).
type BufferConfig struct {
	MaxSize       int
	FlushInterval time.Duration
}

// Buffer accumulates signed events in memory and flushes them to the
// indexed store on a threshold-or-timer basis. Grounded on the teacher's
// outbox/usecase/outbox_usecase.go ticker loop
// (time.NewTicker + select{ctx.Done(), ticker.C}), generalized from
// poll-and-process to accumulate-and-flush: Enqueue appends under the lock
// (§5 "Enqueue appends under the lock"), Run swaps the buffer atomically
// and releases the lock before the batch insert (§5 "flush swaps the
// buffer atomically and releases the lock before the batch insert").
type Buffer struct {
	mu      sync.Mutex
	pending []*domain.Event

	store  Store
	config BufferConfig
	logger *slog.Logger

	flushSignal chan struct{}
}

// NewBuffer creates a Buffer flushing to store.
func NewBuffer(store Store, config BufferConfig, logger *slog.Logger) *Buffer {
	if config.MaxSize <= 0 {
		config.MaxSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 60 * time.Second
	}
	return &Buffer{
		store:       store,
		config:      config,
		logger:      logger,
		flushSignal: make(chan struct{}, 1),
	}
}

// Enqueue appends event to the buffer, signaling Run to flush immediately
// if the threshold is reached.
func (b *Buffer) Enqueue(event *domain.Event) {
	b.mu.Lock()
	b.pending = append(b.pending, event)
	full := len(b.pending) >= b.config.MaxSize
	b.mu.Unlock()

	if full {
		select {
		case b.flushSignal <- struct{}{}:
		default:
		}
	}
}

// swap atomically takes ownership of the pending batch, leaving the buffer
// empty, and releases the lock before the caller performs I/O.
func (b *Buffer) swap() []*domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = nil
	return batch
}

// Flush synchronously swaps and persists the current batch, if any.
func (b *Buffer) Flush(ctx context.Context) error {
	batch := b.swap()
	if len(batch) == 0 {
		return nil
	}
	if err := b.store.AppendBatch(ctx, batch); err != nil {
		if b.logger != nil {
			b.logger.Error("audit buffer flush failed", slog.Int("count", len(batch)), slog.Any("error", err))
		}
		return err
	}
	return nil
}

// Run drives periodic and threshold-triggered flushes until ctx is
// cancelled. It performs a final flush before returning so a clean shutdown
// never silently drops buffered events.
func (b *Buffer) Run(ctx context.Context) {
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = b.Flush(context.Background())
			return
		case <-ticker.C:
			_ = b.Flush(ctx)
		case <-b.flushSignal:
			_ = b.Flush(ctx)
		}
	}
}
