// Package telemetry wires OpenTelemetry metrics and traces for the account flows.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config holds the telemetry configuration.
type Config struct {
	// ServiceName is the name of the service (e.g., "accountguard").
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// SamplingRate is the trace sampling rate (0.0-1.0).
	SamplingRate float64

	// Enabled determines if telemetry is active.
	Enabled bool
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "accountguard",
		ServiceVersion: "dev",
		SamplingRate:   1.0,
		Enabled:        true,
	}
}

// Option customizes the SDK providers built by NewProvider.
type Option func(*options)

type options struct {
	readers    []sdkmetric.Reader
	processors []sdktrace.SpanProcessor
}

// WithMetricReader attaches a metric reader (exporter or manual reader).
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.readers = append(o.readers, r) }
}

// WithSpanProcessor attaches a span processor, typically a batcher around an exporter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.processors = append(o.processors, sp) }
}

// Provider manages OpenTelemetry tracer and meter providers.
// A disabled Provider hands out no-op instruments.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	loginCounter         metric.Int64Counter
	lockoutCounter       metric.Int64Counter
	registrationCounter  metric.Int64Counter
	verificationCounter  metric.Int64Counter
	passwordResetCounter metric.Int64Counter
	loginDuration        metric.Float64Histogram
	activeSessions       metric.Int64UpDownCounter
}

// NewProvider creates a new telemetry provider.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultConfig().ServiceName
	}
	p := &Provider{config: cfg}

	if !cfg.Enabled {
		p.tracer = tracenoop.NewTracerProvider().Tracer(cfg.ServiceName)
		p.meter = metricnoop.NewMeterProvider().Meter(cfg.ServiceName)
		return p, p.initMetrics()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	p.setupTracing(res, o.processors)
	p.setupMetrics(res, o.readers)

	if err := p.initMetrics(); err != nil {
		return nil, err
	}
	return p, nil
}

// Noop returns a disabled provider.
func Noop() *Provider {
	p, _ := NewProvider(Config{Enabled: false})
	return p
}

func (p *Provider) setupTracing(res *resource.Resource, processors []sdktrace.SpanProcessor) {
	var sampler sdktrace.Sampler
	switch {
	case p.config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SamplingRate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	}
	for _, sp := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	p.tracer = p.tracerProvider.Tracer(p.config.ServiceName)
}

func (p *Provider) setupMetrics(res *resource.Resource, readers []sdkmetric.Reader) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	p.meter = p.meterProvider.Meter(p.config.ServiceName)
}

func (p *Provider) initMetrics() error {
	var err error

	p.loginCounter, err = p.meter.Int64Counter(
		"accountguard.login.total",
		metric.WithDescription("Total number of login attempts by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.lockoutCounter, err = p.meter.Int64Counter(
		"accountguard.lockout.total",
		metric.WithDescription("Total number of accounts locked"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.registrationCounter, err = p.meter.Int64Counter(
		"accountguard.registration.total",
		metric.WithDescription("Total number of registration attempts by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.verificationCounter, err = p.meter.Int64Counter(
		"accountguard.verification.total",
		metric.WithDescription("Total number of email verification attempts by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.passwordResetCounter, err = p.meter.Int64Counter(
		"accountguard.password_reset.total",
		metric.WithDescription("Total number of password reset requests and completions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.loginDuration, err = p.meter.Float64Histogram(
		"accountguard.login.duration",
		metric.WithDescription("Login duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	p.activeSessions, err = p.meter.Int64UpDownCounter(
		"accountguard.sessions.active",
		metric.WithDescription("Number of active sessions"),
		metric.WithUnit("1"),
	)
	return err
}

// Shutdown gracefully shuts down the telemetry providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Tracer returns the tracer instance.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Meter returns the meter instance.
func (p *Provider) Meter() metric.Meter { return p.meter }

// ---- Metric Recording Methods ----

// RecordLogin records a login attempt. result is a short outcome label
// such as "success", "invalid_credentials" or "locked".
func (p *Provider) RecordLogin(ctx context.Context, result string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	p.loginCounter.Add(ctx, 1, attrs)
	p.loginDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLockout records an account crossing the failure threshold.
func (p *Provider) RecordLockout(ctx context.Context) {
	p.lockoutCounter.Add(ctx, 1)
}

func (p *Provider) RecordRegistration(ctx context.Context, result string) {
	p.registrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (p *Provider) RecordVerification(ctx context.Context, result string) {
	p.verificationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordPasswordReset records a reset step; stage is "request" or "complete".
func (p *Provider) RecordPasswordReset(ctx context.Context, stage, result string) {
	p.passwordResetCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("result", result),
	))
}

// SessionCreated increments the active session count.
func (p *Provider) SessionCreated(ctx context.Context) {
	p.activeSessions.Add(ctx, 1)
}

// SessionDestroyed decrements the active session count.
func (p *Provider) SessionDestroyed(ctx context.Context) {
	p.activeSessions.Add(ctx, -1)
}
