//go:build integration

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"enrollgate/internal/enrollment"
)

const touchpointSchema = `
	CREATE TABLE IF NOT EXISTS touchpoint (
		passenger_key   TEXT PRIMARY KEY,
		trace_id        TEXT NOT NULL,
		facial_image    TEXT NOT NULL,
		departure_date  TIMESTAMP NOT NULL,
		arrival_airport TEXT NOT NULL
	)
`

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *sql.DB
	store     *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("shard_s1"),
		tcpostgres.WithUsername("enrollgate"),
		tcpostgres.WithPassword("enrollgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = sql.Open("postgres", dsn)
	s.Require().NoError(err)

	_, err = s.db.ExecContext(ctx, touchpointSchema)
	s.Require().NoError(err)

	s.store = NewPostgres(s.db)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.Exec("TRUNCATE touchpoint")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestExistenceProbes() {
	ctx := context.Background()
	departure := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	exists, err := s.store.PassengerExists(ctx, "P1")
	s.Require().NoError(err)
	s.False(exists)

	s.Require().NoError(s.store.InsertTouchpoint(ctx, testRecord("P1")))

	exists, err = s.store.PassengerExists(ctx, "P1")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.FlightExists(ctx, departure, "JFK")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.FlightExists(ctx, departure, "LHR")
	s.Require().NoError(err)
	s.False(exists)

	exists, err = s.store.FlightExists(ctx, departure.Add(time.Minute), "JFK")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *PostgresStoreSuite) TestInsertIdempotent() {
	ctx := context.Background()
	rec := testRecord("P1")

	s.Require().NoError(s.store.InsertTouchpoint(ctx, rec))
	s.Require().NoError(s.store.InsertTouchpoint(ctx, rec))

	var count int
	s.Require().NoError(s.db.QueryRow("SELECT COUNT(*) FROM touchpoint").Scan(&count))
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	rec := testRecord("P1")
	s.Require().NoError(s.store.InsertTouchpoint(ctx, rec))

	var stored enrollment.Record
	var departure time.Time
	err := s.db.QueryRow(
		"SELECT passenger_key, trace_id, facial_image, departure_date, arrival_airport FROM touchpoint WHERE passenger_key = $1",
		"P1",
	).Scan(&stored.PassengerKey, &stored.TraceID, &stored.FacialImage, &departure, &stored.ArrivalAirport)
	s.Require().NoError(err)

	s.Equal(rec.PassengerKey, stored.PassengerKey)
	s.Equal(rec.TraceID, stored.TraceID)
	s.Equal(rec.FacialImage, stored.FacialImage)
	s.True(departure.Equal(rec.DepartureDate.Time))
	s.Equal(rec.ArrivalAirport, stored.ArrivalAirport)
}
