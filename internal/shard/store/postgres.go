package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"enrollgate/internal/enrollment"
)

// PostgresStore implements Store against one shard's touchpoint table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres wraps an already-opened connection pool. The pool is owned by
// the caller and shared across messages; closing it is the caller's job.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) PassengerExists(ctx context.Context, passengerKey string) (bool, error) {
	query := `SELECT 1 FROM touchpoint WHERE passenger_key = $1 LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, passengerKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query passenger existence: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) FlightExists(ctx context.Context, departure time.Time, arrivalAirport string) (bool, error) {
	query := `SELECT 1 FROM touchpoint WHERE departure_date = $1 AND arrival_airport = $2 LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, departure, arrivalAirport).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query flight existence: %w", err)
	}
	return true, nil
}

// InsertTouchpoint is idempotent on passenger_key: replayed stream records
// must not produce duplicate rows.
func (s *PostgresStore) InsertTouchpoint(ctx context.Context, rec enrollment.Record) error {
	query := `
		INSERT INTO touchpoint (passenger_key, trace_id, facial_image, departure_date, arrival_airport)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (passenger_key) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.PassengerKey,
		rec.TraceID,
		rec.FacialImage,
		rec.DepartureDate.Truncate(time.Minute),
		rec.ArrivalAirport,
	)
	if err != nil {
		return fmt.Errorf("insert touchpoint: %w", err)
	}
	return nil
}
