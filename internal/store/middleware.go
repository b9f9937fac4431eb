package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithTimeout returns a Client that bounds every call to next by d. d <= 0 returns next unchanged.
func WithTimeout(next Client, d time.Duration) Client {
	if d <= 0 {
		return next
	}
	return &timeoutClient{next: next, d: d}
}

type timeoutClient struct {
	next Client
	d    time.Duration
}

func (c *timeoutClient) Select(ctx context.Context, relation string, q Query) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Select(ctx, relation, q)
}

func (c *timeoutClient) Insert(ctx context.Context, relation string, row Row) (Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Insert(ctx, relation, row)
}

func (c *timeoutClient) Update(ctx context.Context, relation string, patch Row, filters ...Filter) (Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Update(ctx, relation, patch, filters...)
}

func (c *timeoutClient) Delete(ctx context.Context, relation string, filters ...Filter) error {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Delete(ctx, relation, filters...)
}

func (c *timeoutClient) RPC(ctx context.Context, name string, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.RPC(ctx, name, args)
}

const instrumentationName = "greenline/backend/internal/store"

// Instrument returns a Client that records a span, a call counter and a duration histogram for
// every call to next. Nil providers fall back to the global OTel providers.
func Instrument(next Client, tp trace.TracerProvider, mp metric.MeterProvider) Client {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	calls, err := meter.Int64Counter("store.calls", metric.WithDescription("Remote store calls by operation and outcome"))
	if err != nil {
		otel.Handle(err)
	}
	dur, err := meter.Float64Histogram("store.call.duration", metric.WithUnit("ms"), metric.WithDescription("Remote store call latency"))
	if err != nil {
		otel.Handle(err)
	}
	return &instrumented{next: next, tracer: tp.Tracer(instrumentationName), calls: calls, duration: dur}
}

type instrumented struct {
	next     Client
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

func (c *instrumented) observe(ctx context.Context, op string, attrs []attribute.KeyValue, call func(context.Context) error) {
	attrs = append(attrs, attribute.String("store.operation", op))
	ctx, span := c.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	err := call(ctx)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	set := metric.WithAttributes(append(attrs, attribute.String("store.outcome", outcome))...)
	if c.calls != nil {
		c.calls.Add(ctx, 1, set)
	}
	if c.duration != nil {
		c.duration.Record(ctx, elapsed, set)
	}
}

func (c *instrumented) Select(ctx context.Context, relation string, q Query) (rows []Row, err error) {
	c.observe(ctx, "select", []attribute.KeyValue{attribute.String("store.relation", relation)}, func(ctx context.Context) error {
		rows, err = c.next.Select(ctx, relation, q)
		return err
	})
	return rows, err
}

func (c *instrumented) Insert(ctx context.Context, relation string, row Row) (out Row, err error) {
	c.observe(ctx, "insert", []attribute.KeyValue{attribute.String("store.relation", relation)}, func(ctx context.Context) error {
		out, err = c.next.Insert(ctx, relation, row)
		return err
	})
	return out, err
}

func (c *instrumented) Update(ctx context.Context, relation string, patch Row, filters ...Filter) (out Row, err error) {
	c.observe(ctx, "update", []attribute.KeyValue{attribute.String("store.relation", relation)}, func(ctx context.Context) error {
		out, err = c.next.Update(ctx, relation, patch, filters...)
		return err
	})
	return out, err
}

func (c *instrumented) Delete(ctx context.Context, relation string, filters ...Filter) (err error) {
	c.observe(ctx, "delete", []attribute.KeyValue{attribute.String("store.relation", relation)}, func(ctx context.Context) error {
		err = c.next.Delete(ctx, relation, filters...)
		return err
	})
	return err
}

func (c *instrumented) RPC(ctx context.Context, name string, args map[string]any) (out any, err error) {
	c.observe(ctx, "rpc", []attribute.KeyValue{attribute.String("store.rpc", name)}, func(ctx context.Context) error {
		out, err = c.next.RPC(ctx, name, args)
		return err
	})
	return out, err
}
