package session

import "sync"

// Counter hands out message counters in [1, 65535], wrapping past 65535
// back to 1. Zero is never issued.
type Counter struct {
	mu   sync.Mutex
	next uint16
}

func NewCounter(start uint16) *Counter {
	if start == 0 {
		start = 1
	}
	return &Counter{next: start}
}

// Next returns the current counter and advances it.
func (c *Counter) Next() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	if c.next == 0xFFFF {
		c.next = 1
	} else {
		c.next++
	}
	return v
}
