// Package tracing sets up the OpenTelemetry tracer provider used to trace the task engine loads.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"

	defaultServiceName = "mlprobe"
)

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether tracing is active, when false a no-op tracer is used.
	Enabled bool
	// Exporter is the span export backend: "stdout" or "none".
	Exporter string
	// Writer is where the stdout exporter writes the spans, defaults to stderr so it doesn't
	// mix with the command output.
	Writer      io.Writer
	ServiceName string
	// SampleRate is the fraction of traces sampled, defaults to all of them.
	SampleRate float64
	// Global sets the provider as the otel global one.
	Global bool
}

func (c *Config) defaults() error {
	if c.Exporter == "" {
		c.Exporter = ExporterStdout
	}
	if c.Exporter != ExporterStdout && c.Exporter != ExporterNone {
		return fmt.Errorf("unsupported exporter type: %s", c.Exporter)
	}
	if c.Writer == nil {
		c.Writer = os.Stderr
	}
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1
	}
	return nil
}

// Provider manages the tracer provider lifecycle.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider creates and configures the trace provider.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(defaultServiceName)}, nil
	}

	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	if cfg.Exporter == ExporterStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
		if err != nil {
			return nil, fmt.Errorf("could not create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	if cfg.Global {
		otel.SetTracerProvider(provider)
	}

	return &Provider{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
	}, nil
}

// Tracer returns the tracer, it's a no-op one when tracing is disabled.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Enabled returns whether tracing is enabled.
func (p *Provider) Enabled() bool { return p.provider != nil }

// Shutdown flushes the pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}

	if err := p.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not shutdown tracer provider: %w", err)
	}
	return nil
}
