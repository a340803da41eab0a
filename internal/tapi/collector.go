package tapi

// Collector accumulates decoded records from an open-ended wire list up to a
// capacity. Entries offered after the collector is full are dropped and not
// counted. A capacity of zero or less means the list is unbounded.
type Collector[T any] struct {
	capacity int
	items    []T
}

// NewCollector returns a collector bounded to capacity records.
func NewCollector[T any](capacity int) *Collector[T] {
	c := &Collector[T]{capacity: capacity}
	if capacity > 0 {
		c.items = make([]T, 0, capacity)
	}
	return c
}

// Add appends item and reports whether it was kept.
func (c *Collector[T]) Add(item T) bool {
	if c.Full() {
		return false
	}
	c.items = append(c.items, item)
	return true
}

// Full reports whether further entries would be dropped.
func (c *Collector[T]) Full() bool {
	return c.capacity > 0 && len(c.items) >= c.capacity
}

// Len is the number of collected records.
func (c *Collector[T]) Len() int { return len(c.items) }

// Cap is the configured bound (zero or less when unbounded).
func (c *Collector[T]) Cap() int { return c.capacity }

// Items exposes the collected records. The slice is cleared by Release.
func (c *Collector[T]) Items() []T { return c.items }

// Release zeroes every collected record from the last index down to the
// first and empties the collector.
func (c *Collector[T]) Release() {
	var zero T
	for i := len(c.items) - 1; i >= 0; i-- {
		c.items[i] = zero
	}
	c.items = c.items[:0]
}
