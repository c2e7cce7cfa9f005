package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"enrollgate/internal/enrollment"
	"enrollgate/internal/platform/metrics"
	"enrollgate/internal/platform/rabbit"
	"enrollgate/internal/platform/telemetry"
	"enrollgate/internal/retry"
)

// Handler turns routing outcomes into delivery dispositions: ack on success
// and on duplicates, requeue on transient failure, dead-letter for malformed
// records and for messages that keep failing past the attempt cap.
type Handler struct {
	service     *Service
	attempts    retry.Counter
	maxAttempts int
	timer       *telemetry.ExecTimer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type HandlerOption func(*Handler)

func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

func WithExecTimer(timer *telemetry.ExecTimer) HandlerOption {
	return func(h *Handler) { h.timer = timer }
}

func NewHandler(service *Service, attempts retry.Counter, maxAttempts int, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("routing service is required")
	}
	if attempts == nil {
		return nil, errors.New("delivery attempt counter is required")
	}
	if maxAttempts < 1 {
		return nil, errors.New("max delivery attempts must be at least 1")
	}

	h := &Handler{
		service:     service,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle processes one intake delivery body.
func (h *Handler) Handle(ctx context.Context, body []byte) rabbit.Disposition {
	start := time.Now()

	rec, err := enrollment.Decode(body)
	if err == nil {
		var result Result
		result, err = h.service.Route(ctx, rec)
		if err == nil {
			if !result.Duplicate && h.timer != nil {
				h.timer.Record(time.Since(start))
			}
			return rabbit.Ack
		}
	}

	if errors.Is(err, enrollment.ErrMalformed) {
		// Redelivery can never fix a malformed body.
		h.logger.Error("malformed intake message, dead-lettering", "error", err)
		if h.metrics != nil {
			h.metrics.IncrementDeadLettered()
		}
		return rabbit.DeadLetter
	}

	count, cerr := h.attempts.Incr(ctx, fingerprint(body))
	if cerr != nil {
		// Without a count we cannot cap; fall back to requeue.
		h.logger.Error("delivery attempt counter failed", "error", cerr)
		count = 0
	}
	if count >= h.maxAttempts {
		h.logger.Error("message exceeded delivery attempts, dead-lettering",
			"error", err,
			"attempts", count,
		)
		if h.metrics != nil {
			h.metrics.IncrementDeadLettered()
		}
		return rabbit.DeadLetter
	}

	h.logger.Error("error processing message, requeueing",
		"error", err,
		"attempts", count,
	)
	if h.metrics != nil {
		h.metrics.IncrementRequeued()
	}
	return rabbit.Requeue
}

// fingerprint identifies a message body across redeliveries and consumer
// instances.
func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
