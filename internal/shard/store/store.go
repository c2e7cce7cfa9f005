// Package store defines the per-shard touchpoint store port and its Postgres
// and in-memory implementations.
package store

import (
	"context"
	"time"

	"enrollgate/internal/enrollment"
)

// Store is the query surface one shard exposes to the routing pipeline.
// Errors are data-access errors; "not found" is never reported as an error.
type Store interface {
	// PassengerExists reports whether this shard holds a touchpoint for the
	// passenger key.
	PassengerExists(ctx context.Context, passengerKey string) (bool, error)

	// FlightExists reports whether this shard holds any touchpoint for the
	// flight key. departure must be minute-truncated.
	FlightExists(ctx context.Context, departure time.Time, arrivalAirport string) (bool, error)

	// InsertTouchpoint persists one enrollment record. Re-inserting the same
	// passenger key is a no-op.
	InsertTouchpoint(ctx context.Context, rec enrollment.Record) error
}
