package registry

import (
	"context"
	"sync"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/shard"
)

// InMemoryRegistry implements FlightRegistry for a single process. Used in
// unit tests and when no shared registry is configured.
type InMemoryRegistry struct {
	mu     sync.Mutex
	claims map[string]shard.ID
}

func NewInMemory() *InMemoryRegistry {
	return &InMemoryRegistry{claims: make(map[string]shard.ID)}
}

func (r *InMemoryRegistry) Claim(ctx context.Context, key enrollment.FlightKey, candidate shard.ID) (shard.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if winner, ok := r.claims[key.String()]; ok {
		return winner, nil
	}
	r.claims[key.String()] = candidate
	return candidate, nil
}
