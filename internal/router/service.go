// Package router decides which shard receives each enrollment record and
// applies the intake acknowledgment state machine.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/platform/metrics"
	"enrollgate/internal/registry"
	"enrollgate/internal/shard"
)

// ExistenceResolver answers the cross-shard duplicate and affinity queries.
type ExistenceResolver interface {
	PassengerExists(ctx context.Context, passengerKey string) (bool, error)
	FlightOwner(ctx context.Context, key enrollment.FlightKey) (shard.ID, bool, error)
}

// Publisher delivers the outbound message to a shard's ingestion stream.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Result reports how a record was resolved. Duplicate results carry no shard
// and produced no publish.
type Result struct {
	Duplicate bool
	Shard     shard.ID
}

// Service routes one record at a time: duplicate check, flight affinity,
// random fallback arbitrated through the flight registry, then exactly one
// publish.
type Service struct {
	resolver    ExistenceResolver
	registry    registry.FlightRegistry
	publisher   Publisher
	topicPrefix string
	randInt     func(n int) int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRandInt replaces the uniform shard picker; tests use it to force the
// fallback choice.
func WithRandInt(fn func(n int) int) Option {
	return func(s *Service) { s.randInt = fn }
}

func New(resolver ExistenceResolver, reg registry.FlightRegistry, publisher Publisher, topicPrefix string, opts ...Option) (*Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("existence resolver is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("flight registry is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	svc := &Service{
		resolver:    resolver,
		registry:    reg,
		publisher:   publisher,
		topicPrefix: topicPrefix,
		randInt:     rand.IntN,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Route resolves the shard for rec and publishes the outbound message.
// Duplicates return a Result with no error: they are handled, not failed.
func (s *Service) Route(ctx context.Context, rec enrollment.Record) (Result, error) {
	exists, err := s.resolver.PassengerExists(ctx, rec.PassengerKey)
	if err != nil {
		return Result{}, err
	}
	if exists {
		s.logger.Warn("passenger already exists, skipping ingestion",
			"trace_id", rec.TraceID,
			"passenger_key", rec.PassengerKey,
		)
		if s.metrics != nil {
			s.metrics.IncrementDuplicates()
		}
		return Result{Duplicate: true}, nil
	}

	key := rec.FlightKey()
	selected, owned, err := s.resolver.FlightOwner(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if owned {
		s.logger.Info("flight exists in shard, routing by affinity",
			"trace_id", rec.TraceID,
			"shard", selected,
		)
	} else {
		candidate := shard.All()[s.randInt(len(shard.All()))]
		selected, err = s.registry.Claim(ctx, key, candidate)
		if err != nil {
			return Result{}, err
		}
		s.logger.Info("flight not yet assigned, claimed shard",
			"trace_id", rec.TraceID,
			"candidate", candidate,
			"shard", selected,
		)
	}

	body, err := rec.Encode()
	if err != nil {
		return Result{}, err
	}

	topic := selected.Topic(s.topicPrefix)
	s.logger.Info("publishing enrollment record",
		"trace_id", rec.TraceID,
		"passenger_key", rec.PassengerKey,
		"topic", topic,
	)
	if err := s.publisher.Publish(ctx, topic, []byte(rec.PassengerKey), body); err != nil {
		return Result{}, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRouted(selected.String())
	}
	return Result{Shard: selected}, nil
}
