// Package resolver answers cross-shard existence questions for the router.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/shard"
	"enrollgate/internal/shard/store"
)

// Resolver fans existence probes out across every shard store, always in the
// fixed shard.All() order so results are deterministic.
type Resolver struct {
	stores map[shard.ID]store.Store
	logger *slog.Logger
}

func New(stores map[shard.ID]store.Store, logger *slog.Logger) (*Resolver, error) {
	for _, id := range shard.All() {
		if stores[id] == nil {
			return nil, fmt.Errorf("missing store for shard %s", id)
		}
	}
	return &Resolver{stores: stores, logger: logger}, nil
}

// PassengerExists reports whether any shard already holds a touchpoint for
// the passenger key. A store error aborts the scan: an unreachable shard must
// never be read as "not found".
func (r *Resolver) PassengerExists(ctx context.Context, passengerKey string) (bool, error) {
	r.logger.Debug("checking passenger existence", "passenger_key", passengerKey)

	for _, id := range shard.All() {
		exists, err := r.stores[id].PassengerExists(ctx, passengerKey)
		if err != nil {
			return false, fmt.Errorf("shard %s passenger check: %w", id, err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// FlightOwner returns the first shard, in check order, holding any touchpoint
// for the flight key. ok is false when no shard owns the flight yet.
func (r *Resolver) FlightOwner(ctx context.Context, key enrollment.FlightKey) (shard.ID, bool, error) {
	r.logger.Debug("checking flight existence", "flight_key", key.String())

	for _, id := range shard.All() {
		exists, err := r.stores[id].FlightExists(ctx, key.Departure, key.ArrivalAirport)
		if err != nil {
			return "", false, fmt.Errorf("shard %s flight check: %w", id, err)
		}
		if exists {
			return id, true, nil
		}
	}
	return "", false, nil
}
