package store

import (
	"context"
	"sync"
	"time"

	"enrollgate/internal/enrollment"
)

// InMemoryStore mirrors the Postgres semantics for unit tests, including the
// idempotent insert. FailWith injects a data-access error on every call until
// cleared, which is how tests exercise the requeue and offset-hold paths.
type InMemoryStore struct {
	mu          sync.Mutex
	touchpoints map[string]enrollment.Record
	failure     error
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{touchpoints: make(map[string]enrollment.Record)}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *InMemoryStore) PassengerExists(ctx context.Context, passengerKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	_, ok := s.touchpoints[passengerKey]
	return ok, nil
}

func (s *InMemoryStore) FlightExists(ctx context.Context, departure time.Time, arrivalAirport string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	for _, rec := range s.touchpoints {
		if rec.DepartureDate.Truncate(time.Minute).Equal(departure) && rec.ArrivalAirport == arrivalAirport {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) InsertTouchpoint(ctx context.Context, rec enrollment.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if _, ok := s.touchpoints[rec.PassengerKey]; ok {
		return nil
	}
	s.touchpoints[rec.PassengerKey] = rec
	return nil
}

// Count returns the number of persisted touchpoints.
func (s *InMemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.touchpoints)
}

// Get returns the stored record for a passenger key, if any.
func (s *InMemoryStore) Get(passengerKey string) (enrollment.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.touchpoints[passengerKey]
	return rec, ok
}
