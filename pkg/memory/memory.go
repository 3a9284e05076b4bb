package memory

import "sync"

// History keeps the most recent capacity items in insertion order.
type History[T any] struct {
	items    []T
	capacity int
	mu       sync.RWMutex
}

func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of the stored items, oldest first
func (h *History[T]) All() []T {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]T, len(h.items))
	copy(items, h.items)
	return items
}

// Last returns up to n of the newest items, oldest first
func (h *History[T]) Last(n int) []T {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.items) {
		n = len(h.items)
	}
	if n <= 0 {
		return nil
	}
	items := make([]T, n)
	copy(items, h.items[len(h.items)-n:])
	return items
}

func (h *History[T]) Store(item T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == h.capacity {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, item)
}

func (h *History[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History[T]) Cap() int { return h.capacity }

func (h *History[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.items[:0]
}
