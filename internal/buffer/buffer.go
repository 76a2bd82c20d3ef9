package buffer

import (
	"sync"
)

// growThreshold is the fill percentage at which the ring doubles.
const growThreshold = 70

// GrowableBuffer is a thread-safe ring buffer that doubles its capacity
// once it is 70% full. Send never blocks.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int // next read
	count  int
	closed bool

	// Stats
	pushed  int64
	popped  int64
	resizes int
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
// Capacities below 1 are raised to 1.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &GrowableBuffer[T]{ring: make([]T, initialCapacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	limit := len(b.ring) * growThreshold / 100
	if limit < 1 {
		limit = 1
	}
	if b.count+1 >= limit {
		b.grow()
	}

	b.ring[(b.head+b.count)%len(b.ring)] = item
	b.count++
	b.pushed++
	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed and
// drained. The bool is false only in the latter case.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// TryReceive returns the oldest item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// DrainTo removes up to max items (all of them when max <= 0) in FIFO
// order. Returns nil when the buffer is empty.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	n := b.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	return out
}

// Close marks the buffer closed. Pending items can still be received;
// blocked receivers wake up.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (b *GrowableBuffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Stats returns a snapshot of buffer counters.
func (b *GrowableBuffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:       b.count,
		Capacity:    len(b.ring),
		TotalPushed: b.pushed,
		TotalPopped: b.popped,
		ResizeCount: b.resizes,
	}
}

// Stats contains buffer counters.
type Stats struct {
	Count       int
	Capacity    int
	TotalPushed int64
	TotalPopped int64
	ResizeCount int
}

// pop removes the head item. Caller holds the lock and has checked count.
func (b *GrowableBuffer[T]) pop() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.popped++
	return item
}

// grow doubles the ring, unwrapping queued items to the front.
// Caller holds the lock.
func (b *GrowableBuffer[T]) grow() {
	next := make([]T, len(b.ring)*2)
	for i := 0; i < b.count; i++ {
		next[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.ring = next
	b.head = 0
	b.resizes++
}
