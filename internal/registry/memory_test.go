package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/shard"
)

func flightKey(airport string) enrollment.FlightKey {
	return enrollment.FlightKey{
		Departure:      time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		ArrivalAirport: airport,
	}
}

func TestClaimFirstWins(t *testing.T) {
	reg := NewInMemory()
	ctx := context.Background()

	winner, err := reg.Claim(ctx, flightKey("JFK"), shard.S2)
	require.NoError(t, err)
	assert.Equal(t, shard.S2, winner)

	// A later candidate loses to the existing claim.
	winner, err = reg.Claim(ctx, flightKey("JFK"), shard.S3)
	require.NoError(t, err)
	assert.Equal(t, shard.S2, winner)

	// A different flight claims independently.
	winner, err = reg.Claim(ctx, flightKey("LHR"), shard.S3)
	require.NoError(t, err)
	assert.Equal(t, shard.S3, winner)
}

// Racing claimants for the same unseen flight must converge on one shard.
func TestClaimConcurrent(t *testing.T) {
	reg := NewInMemory()
	ctx := context.Background()
	key := flightKey("JFK")

	const claimants = 50
	winners := make([]shard.ID, claimants)

	var wg sync.WaitGroup
	for i := range claimants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candidate := shard.All()[i%len(shard.All())]
			winner, err := reg.Claim(ctx, key, candidate)
			assert.NoError(t, err)
			winners[i] = winner
		}()
	}
	wg.Wait()

	for _, winner := range winners[1:] {
		assert.Equal(t, winners[0], winner)
	}
}
