// Package telemetry exports the execution-time gauge over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"enrollgate/internal/platform/config"
)

// ExecTimer records the duration of the most recent message, observed as a
// gauge by the periodic exporter. Safe for concurrent use.
type ExecTimer struct {
	lastBits atomic.Uint64
}

// Record stores the latest per-message processing duration.
func (t *ExecTimer) Record(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	t.lastBits.Store(math.Float64bits(ms))
}

func (t *ExecTimer) last() float64 {
	return math.Float64frombits(t.lastBits.Load())
}

// Setup wires the OTLP/gRPC metric exporter and registers the
// application.execution_time gauge. With no endpoint configured it returns a
// usable timer and a no-op shutdown.
func Setup(ctx context.Context, service string, cfg config.Telemetry) (*ExecTimer, func(context.Context) error, error) {
	timer := &ExecTimer{}

	if cfg.Endpoint == "" {
		return timer, func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		semconv.ServiceVersion(cfg.ReleaseVersion),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.ExportInterval))),
	)

	meter := provider.Meter(service)
	_, err = meter.Float64ObservableGauge("application.execution_time",
		metric.WithUnit("ms"),
		metric.WithDescription("Time spent processing the most recent message"),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			obs.Observe(timer.last())
			return nil
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("register execution time gauge: %w", err)
	}

	return timer, provider.Shutdown, nil
}
