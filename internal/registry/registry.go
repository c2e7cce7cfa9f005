// Package registry arbitrates first-seen flight assignments.
//
// Two router instances can race on a flight no shard owns yet: both observe
// "no owner" and pick independent random shards. The registry turns that
// read-then-pick race into an atomic insert-if-absent claim, so every racer
// converges on the same assignment.
package registry

import (
	"context"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/shard"
)

// FlightRegistry records which shard owns a flight's first-seen assignment.
type FlightRegistry interface {
	// Claim atomically assigns candidate to the flight key if no assignment
	// exists yet, and returns the winning assignment either way.
	Claim(ctx context.Context, key enrollment.FlightKey, candidate shard.ID) (shard.ID, error)
}
