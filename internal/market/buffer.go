package market

import (
	"errors"
	"sync"
	"time"
)

// ErrOutOfOrder is returned when a closed bar is older than the newest one held.
var ErrOutOfOrder = errors.New("bar older than buffer tail")

// Buffer is a fixed-capacity ring of closed bars plus the in-progress bar.
// It has one writer (the owning stream) and any number of readers; readers
// only ever receive copies.
type Buffer struct {
	mu      sync.RWMutex
	bars    []Bar
	start   int
	length  int
	current Bar
	hasCur  bool
	notify  chan struct{}
}

// NewBuffer allocates a buffer holding at most capacity closed bars.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		bars:   make([]Bar, capacity),
		notify: make(chan struct{}),
	}
}

// Cap returns the maximum number of closed bars retained.
func (b *Buffer) Cap() int { return len(b.bars) }

// Len returns the number of closed bars held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length
}

// Append stores a closed bar, evicting the oldest on overflow. A bar with the
// same open time as the tail replaces it so backfill and live data can overlap.
func (b *Buffer) Append(bar Bar) error {
	bar.Closed = true

	b.mu.Lock()
	if b.length > 0 {
		tail := b.at(b.length - 1)
		switch {
		case bar.OpenTime.Before(tail.OpenTime):
			b.mu.Unlock()
			return ErrOutOfOrder
		case bar.OpenTime.Equal(tail.OpenTime):
			b.bars[(b.start+b.length-1)%len(b.bars)] = bar
			b.wakeLocked()
			b.mu.Unlock()
			return nil
		}
	}
	if b.length < len(b.bars) {
		b.bars[(b.start+b.length)%len(b.bars)] = bar
		b.length++
	} else {
		b.bars[b.start] = bar
		b.start = (b.start + 1) % len(b.bars)
	}
	if b.hasCur && !b.current.OpenTime.After(bar.OpenTime) {
		b.hasCur = false
		b.current = Bar{}
	}
	b.wakeLocked()
	b.mu.Unlock()
	return nil
}

// SetCurrent replaces the in-progress bar.
func (b *Buffer) SetCurrent(bar Bar) {
	bar.Closed = false
	b.mu.Lock()
	b.current = bar
	b.hasCur = true
	b.mu.Unlock()
}

// Current returns the in-progress bar, if any.
func (b *Buffer) Current() (Bar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.hasCur
}

// Snapshot returns a chronological copy of the closed bars.
func (b *Buffer) Snapshot() []Bar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Bar, b.length)
	for i := 0; i < b.length; i++ {
		out[i] = b.at(i)
	}
	return out
}

// Last returns the newest closed bar.
func (b *Buffer) Last() (Bar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.length == 0 {
		return Bar{}, false
	}
	return b.at(b.length - 1), true
}

// Changed returns a channel that is closed on the next append.
func (b *Buffer) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

// After returns the first closed bar with an open time after t.
func (b *Buffer) After(t time.Time) (Bar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := 0; i < b.length; i++ {
		if bar := b.at(i); bar.OpenTime.After(t) {
			return bar, true
		}
	}
	return Bar{}, false
}

func (b *Buffer) at(i int) Bar {
	return b.bars[(b.start+i)%len(b.bars)]
}

func (b *Buffer) wakeLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}
