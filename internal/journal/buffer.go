package journal

import "sync"

// eventBuffer is a thread-safe bounded ring. When full, the oldest entry is
// dropped: the journal is best-effort and must never stall the reconciler.
type eventBuffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int

	// Stats
	totalReceived int64
	totalDropped  int64
}

// newEventBuffer creates a buffer with the given capacity.
func newEventBuffer[T any](capacity int) *eventBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &eventBuffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds an item, evicting the oldest when full. Never blocks.
func (b *eventBuffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.totalDropped++
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++
}

// DrainTo removes up to max items in arrival order. max <= 0 means all.
func (b *eventBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.buf[b.head]
		var zero T
		b.buf[b.head] = zero // Clear reference for GC
		b.head = (b.head + 1) % b.capacity
		b.count--
	}

	return result
}

// Len returns the current number of items.
func (b *eventBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *eventBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalReceived: b.totalReceived,
		TotalDropped:  b.totalDropped,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalDropped  int64
}
