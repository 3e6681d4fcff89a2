package telemetry

import (
	"sync"
	"time"

	"github.com/dqguard/dqguard/internal/errs"
)

// BufferEntry is one pending metric upload plus retry bookkeeping.
type BufferEntry struct {
	Metric     Metric
	RetryCount int
	QueuedAt   time.Time
	ReadyAt    time.Time
}

// Buffer is a bounded, in-memory FIFO queue of pending metric uploads.
// Push fails with ErrBufferOverflow once the queue is at capacity.
// Drain only returns entries whose ReadyAt has elapsed, so an entry
// requeued with PushRetry sits out its backoff before it is offered
// again.
type Buffer struct {
	mu      sync.Mutex
	entries []BufferEntry
	maxSize int
}

func NewBuffer(maxSize int) *Buffer {
	return &Buffer{maxSize: maxSize}
}

// Push enqueues m as a fresh entry, ready immediately.
func (b *Buffer) Push(m Metric) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.maxSize {
		overflowCount.Inc()
		return errs.ErrBufferOverflow.New(b.maxSize)
	}
	now := time.Now()
	b.entries = append(b.entries, BufferEntry{Metric: m, QueuedAt: now, ReadyAt: now})
	return nil
}

// PushRetry re-queues entry with its retry count incremented and
// ReadyAt pushed out to readyAt.
func (b *Buffer) PushRetry(entry BufferEntry, readyAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.maxSize {
		overflowCount.Inc()
		return errs.ErrBufferOverflow.New(b.maxSize)
	}
	entry.RetryCount++
	entry.ReadyAt = readyAt
	b.entries = append(b.entries, entry)
	return nil
}

// Drain removes and returns up to count entries whose ReadyAt has
// already passed, preserving the order of what remains queued.
func (b *Buffer) Drain(count int) []BufferEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var drained []BufferEntry
	remaining := b.entries[:0]
	for _, e := range b.entries {
		if len(drained) < count && !e.ReadyAt.After(now) {
			drained = append(drained, e)
			continue
		}
		remaining = append(remaining, e)
	}
	b.entries = remaining
	queueDepth.Set(float64(len(b.entries)))
	return drained
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// PeekAll returns a snapshot copy of every queued entry, for tests and
// diagnostics; mutating the result does not affect the buffer.
func (b *Buffer) PeekAll() []BufferEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BufferEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Clear empties the buffer and returns what was discarded.
func (b *Buffer) Clear() []BufferEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}
