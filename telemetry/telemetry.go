// Package telemetry exports auth traces over OTLP and auth metrics through a
// Prometheus reader. A disabled Provider is safe to use everywhere.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	ServiceName    string
	ServiceVersion string

	// OTLPEndpoint receives spans over gRPC. Empty keeps spans in process.
	OTLPEndpoint string

	// SampleRatio in [0, 1].
	SampleRatio float64

	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "shogun",
		ServiceVersion: "0.1.0",
		SampleRatio:    1,
		Enabled:        true,
	}
}

// instruments are nil on a disabled provider.
type instruments struct {
	attempts    metric.Int64Counter
	transitions metric.Int64Counter
	authTime    metric.Float64Histogram
	deriveTime  metric.Float64Histogram
}

// Provider owns the tracer and meter providers for one manager.
type Provider struct {
	name   string
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer
	inst   *instruments
}

// Disabled returns a provider that records nothing.
func Disabled() *Provider {
	return &Provider{name: "shogun"}
}

func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{name: cfg.ServiceName}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(cfg, res)
	if err != nil {
		return nil, err
	}

	reader, err := prometheus.New()
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(context.Background()))
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))

	inst, err := newInstruments(mp.Meter(cfg.ServiceName))
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(context.Background()), mp.Shutdown(context.Background()))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Provider{
		name:   cfg.ServiceName,
		tp:     tp,
		mp:     mp,
		tracer: tp.Tracer(cfg.ServiceName),
		inst:   inst,
	}, nil
}

func newTracerProvider(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	if cfg.SampleRatio >= 1 {
		sampler = sdktrace.AlwaysSample()
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}

	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		in   instruments
		errs [4]error
	)
	in.attempts, errs[0] = m.Int64Counter("shogun.auth.attempts",
		metric.WithDescription("Login and sign up attempts by method and outcome"))
	in.transitions, errs[1] = m.Int64Counter("shogun.state.transitions",
		metric.WithDescription("Auth state machine transitions"))
	in.authTime, errs[2] = m.Float64Histogram("shogun.auth.duration",
		metric.WithUnit("s"))
	in.deriveTime, errs[3] = m.Float64Histogram("shogun.derive.duration",
		metric.WithDescription("Key derivation latency"), metric.WithUnit("s"))
	return &in, errors.Join(errs[:]...)
}

// Shutdown flushes pending spans. It is a no-op when disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		errs = append(errs, p.tp.Shutdown(ctx))
	}
	if p.mp != nil {
		errs = append(errs, p.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer(p.name)
	}
	return p.tracer
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("outcome", "success")
	}
	return attribute.String("outcome", "failure")
}

func (p *Provider) attempt(ctx context.Context, op, method string, ok bool) {
	if p.inst == nil {
		return
	}
	p.inst.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("method", method),
		outcome(ok),
	))
}

func (p *Provider) RecordLogin(ctx context.Context, method string, ok bool) {
	p.attempt(ctx, "login", method, ok)
}

func (p *Provider) RecordSignUp(ctx context.Context, method string, ok bool) {
	p.attempt(ctx, "signup", method, ok)
}

// RecordTransition counts one state machine edge.
func (p *Provider) RecordTransition(ctx context.Context, from, to, event string) {
	if p.inst == nil {
		return
	}
	p.inst.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("event", event),
	))
}

func (p *Provider) RecordAuthDuration(ctx context.Context, method string, d time.Duration) {
	if p.inst == nil {
		return
	}
	p.inst.authTime.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("method", method)))
}

func (p *Provider) RecordDeriveDuration(ctx context.Context, method string, d time.Duration) {
	if p.inst == nil {
		return
	}
	p.inst.deriveTime.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("method", method)))
}
