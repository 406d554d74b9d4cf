// Package debounce coalesces rapid edits to a field into a single write.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period before a pending edit is written.
const DefaultDelay = 800 * time.Millisecond

// Buffer holds the latest unsaved value of one editable field. Every Set
// restarts the quiet-period timer; when it fires the latest value is passed
// to the flush function once. Flush writes the pending value immediately and
// is meant for focus loss or leaving the screen.
//
// Flushes never run concurrently with each other.
type Buffer[T any] struct {
	delay time.Duration
	flush func(T)

	mu      sync.Mutex
	flushMu sync.Mutex
	pending bool
	value   T
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New creates a buffer that calls flush after delay of inactivity.
func New[T any](delay time.Duration, flush func(T)) *Buffer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Buffer[T]{delay: delay, flush: flush}
}

// Set records v as the latest value and restarts the quiet period.
func (b *Buffer[T]) Set(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.value = v
	b.pending = true
	b.gen++
	gen := b.gen
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() { b.fire(gen) })
}

// Pending reports the unsaved value, if any.
func (b *Buffer[T]) Pending() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.pending
}

// Flush writes the pending value now. It reports whether anything was written.
func (b *Buffer[T]) Flush() bool {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	v, ok := b.take(0)
	if ok {
		b.flush(v)
	}
	return ok
}

// Discard drops the pending value without writing it.
func (b *Buffer[T]) Discard() {
	b.take(0)
}

// Stop flushes any pending value and disables the buffer. Sets that race
// with Stop are dropped rather than armed after it returns.
func (b *Buffer[T]) Stop() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	v, ok := b.take(0)
	if ok {
		b.flush(v)
	}
}

func (b *Buffer[T]) fire(gen uint64) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	v, ok := b.take(gen)
	if ok {
		b.flush(v)
	}
}

// take clears and returns the pending value. A non-zero gen only matches the
// Set that armed the timer, so a stale timer cannot flush a newer edit early.
func (b *Buffer[T]) take(gen uint64) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	if !b.pending || (gen != 0 && gen != b.gen) {
		return zero, false
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	v := b.value
	b.value = zero
	b.pending = false
	return v, true
}
