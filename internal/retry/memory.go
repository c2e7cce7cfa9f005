package retry

import (
	"context"
	"sync"
)

// InMemoryCounter is the single-process Counter used in tests.
type InMemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewInMemory() *InMemoryCounter {
	return &InMemoryCounter{counts: make(map[string]int)}
}

func (c *InMemoryCounter) Incr(ctx context.Context, fingerprint string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[fingerprint]++
	return c.counts[fingerprint], nil
}
