package sqlite

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/louisbranch/gamestate/internal/services/game/storage/versioned/sqlite"

// Transaction outcomes reported on the versioned.transactions counter.
const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider used for Execute spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the provider used for transaction metrics. The
// global provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

type telemetry struct {
	tracer       trace.Tracer
	transactions metric.Int64Counter
	duration     metric.Float64Histogram
}

func newTelemetry(o options) (*telemetry, error) {
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	transactions, err := meter.Int64Counter("versioned.transactions",
		metric.WithDescription("Object store transactions by outcome."),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("versioned.transaction.duration",
		metric.WithDescription("Object store transaction wall time."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &telemetry{
		tracer:       tp.Tracer(instrumentationName),
		transactions: transactions,
		duration:     duration,
	}, nil
}

func (t *telemetry) start(ctx context.Context, write bool, steps int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "versioned.Execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Bool("store.write", write),
			attribute.Int("store.steps", steps),
		),
	)
}

func (t *telemetry) finish(ctx context.Context, span trace.Span, write bool, outcome string, started time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("store.outcome", outcome))
	span.End()

	attrs := metric.WithAttributes(
		attribute.Bool("write", write),
		attribute.String("outcome", outcome),
	)
	t.transactions.Add(ctx, 1, attrs)
	t.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}
