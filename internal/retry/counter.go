// Package retry counts redeliveries so the intake handler can dead-letter
// poison messages instead of requeueing them forever.
package retry

import "context"

// Counter tracks how many times a message fingerprint has failed processing.
type Counter interface {
	// Incr bumps the failure count for the fingerprint and returns the new
	// total.
	Incr(ctx context.Context, fingerprint string) (int, error)
}
