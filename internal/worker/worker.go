// Package worker persists one shard's ingestion stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/platform/kafka/consumer"
	"enrollgate/internal/platform/metrics"
	"enrollgate/internal/platform/telemetry"
	"enrollgate/internal/shard"
	"enrollgate/internal/shard/store"
)

// Worker handles records from its shard's ingestion stream and commits each
// to the shard store. It implements the stream consumer's Handler contract:
// a returned error keeps the offset uncommitted so the record is redelivered.
type Worker struct {
	shard   shard.ID
	store   store.Store
	timer   *telemetry.ExecTimer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithExecTimer(timer *telemetry.ExecTimer) Option {
	return func(w *Worker) { w.timer = timer }
}

func New(id shard.ID, st store.Store, opts ...Option) (*Worker, error) {
	if st == nil {
		return nil, fmt.Errorf("shard store is required")
	}
	w := &Worker{
		shard:  id,
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Handle persists one stream record. Malformed records are logged and
// skipped with a nil return: committing past them keeps a poison record from
// wedging the partition, and the upstream dedup plus the idempotent insert
// bound the damage.
func (w *Worker) Handle(ctx context.Context, msg *consumer.Message) error {
	start := time.Now()

	rec, err := enrollment.Decode(msg.Value)
	if err != nil {
		if errors.Is(err, enrollment.ErrMalformed) {
			w.logger.Error("malformed stream record, skipping",
				"shard", w.shard,
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		}
		return err
	}

	w.logger.Info("inserting touchpoint",
		"trace_id", rec.TraceID,
		"passenger_key", rec.PassengerKey,
		"shard", w.shard,
	)

	if err := w.store.InsertTouchpoint(ctx, rec); err != nil {
		return fmt.Errorf("persist touchpoint for %s: %w", rec.PassengerKey, err)
	}

	w.logger.Info("touchpoint committed",
		"trace_id", rec.TraceID,
		"passenger_key", rec.PassengerKey,
		"shard", w.shard,
	)
	if w.metrics != nil {
		w.metrics.IncrementPersisted(w.shard.String())
	}
	if w.timer != nil {
		w.timer.Record(time.Since(start))
	}
	return nil
}
