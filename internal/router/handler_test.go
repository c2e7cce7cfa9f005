package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"enrollgate/internal/platform/rabbit"
	"enrollgate/internal/registry"
	"enrollgate/internal/resolver"
	"enrollgate/internal/retry"
	"enrollgate/internal/shard"
	"enrollgate/internal/shard/store"
)

const testMaxAttempts = 3

type HandlerSuite struct {
	suite.Suite
	ctx       context.Context
	stores    map[shard.ID]*store.InMemoryStore
	publisher *capturePublisher
	handler   *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.stores = make(map[shard.ID]*store.InMemoryStore)
	ports := make(map[shard.ID]store.Store)
	for _, id := range shard.All() {
		mem := store.NewInMemory()
		s.stores[id] = mem
		ports[id] = mem
	}

	res, err := resolver.New(ports, slog.New(slog.DiscardHandler))
	s.Require().NoError(err)
	s.publisher = &capturePublisher{}

	service, err := New(res, registry.NewInMemory(), s.publisher, testTopicPrefix,
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	s.Require().NoError(err)

	s.handler, err = NewHandler(service, retry.NewInMemory(), testMaxAttempts,
		WithHandlerLogger(slog.New(slog.DiscardHandler)),
	)
	s.Require().NoError(err)
}

func intakeBody(passengerKey string) []byte {
	return fmt.Appendf(nil, `{
		"passenger_key": %q,
		"trace_id": "trace-%s",
		"facial_image": "aGVsbG8=",
		"departure_date": "2025-01-01 10:00",
		"arrival_airport": "JFK"
	}`, passengerKey, passengerKey)
}

func (s *HandlerSuite) TestNewHandler() {
	s.Run("nil service rejected", func() {
		_, err := NewHandler(nil, retry.NewInMemory(), testMaxAttempts)
		s.Error(err)
	})
	s.Run("nil counter rejected", func() {
		_, err := NewHandler(s.handler.service, nil, testMaxAttempts)
		s.Error(err)
	})
	s.Run("zero attempt cap rejected", func() {
		_, err := NewHandler(s.handler.service, retry.NewInMemory(), 0)
		s.Error(err)
	})
}

func (s *HandlerSuite) TestAckOnSuccess() {
	disp := s.handler.Handle(s.ctx, intakeBody("P1"))
	s.Equal(rabbit.Ack, disp)
	s.Len(s.publisher.All(), 1)
}

func (s *HandlerSuite) TestAckOnDuplicate() {
	s.Equal(rabbit.Ack, s.handler.Handle(s.ctx, intakeBody("P1")))
	published := s.publisher.All()
	s.Require().Len(published, 1)

	// Simulate the downstream worker persisting into the routed shard.
	routed := shard.ID(published[0].topic[len(testTopicPrefix):])
	s.Require().NoError(s.stores[routed].InsertTouchpoint(s.ctx, record("P1", "JFK")))

	// Duplicates are handled, not failed: same ack, but nothing published.
	s.Equal(rabbit.Ack, s.handler.Handle(s.ctx, intakeBody("P1")))
	s.Len(s.publisher.All(), 1)
}

func (s *HandlerSuite) TestRequeueOnTransientFailure() {
	s.publisher.FailWith(errors.New("broker timeout"))

	disp := s.handler.Handle(s.ctx, intakeBody("P1"))
	s.Equal(rabbit.Requeue, disp)
	s.Empty(s.publisher.All())
}

func (s *HandlerSuite) TestDeadLetterAfterAttemptCap() {
	s.publisher.FailWith(errors.New("broker down"))
	body := intakeBody("P1")

	s.Equal(rabbit.Requeue, s.handler.Handle(s.ctx, body))
	s.Equal(rabbit.Requeue, s.handler.Handle(s.ctx, body))
	s.Equal(rabbit.DeadLetter, s.handler.Handle(s.ctx, body))
}

func (s *HandlerSuite) TestAttemptsCountPerMessage() {
	s.publisher.FailWith(errors.New("broker down"))

	// Different bodies have independent attempt counts.
	s.Equal(rabbit.Requeue, s.handler.Handle(s.ctx, intakeBody("P1")))
	s.Equal(rabbit.Requeue, s.handler.Handle(s.ctx, intakeBody("P1")))
	s.Equal(rabbit.Requeue, s.handler.Handle(s.ctx, intakeBody("P2")))
}

func (s *HandlerSuite) TestDeadLetterMalformed() {
	s.Run("missing field", func() {
		disp := s.handler.Handle(s.ctx, []byte(`{"trace_id":"t"}`))
		s.Equal(rabbit.DeadLetter, disp)
	})
	s.Run("invalid json", func() {
		disp := s.handler.Handle(s.ctx, []byte("{not json"))
		s.Equal(rabbit.DeadLetter, disp)
	})
	s.Empty(s.publisher.All())
}
