// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer and meter scope used across the module.
const InstrumentationName = "github.com/tombee/checks-jenkins"

// Provider wraps the OpenTelemetry SDK tracer and meter providers.
type Provider struct {
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	registry *prometheus.Registry
	metrics  *Metrics
}

// ProviderOption customizes NewProvider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	traceOpts []sdktrace.TracerProviderOption
	stdout    io.Writer
	global    bool
}

// WithTracerProviderOptions appends raw SDK options, typically a syncer in tests.
func WithTracerProviderOptions(opts ...sdktrace.TracerProviderOption) ProviderOption {
	return func(o *providerOptions) {
		o.traceOpts = append(o.traceOpts, opts...)
	}
}

// WithStdout redirects the stdout exporter.
func WithStdout(w io.Writer) ProviderOption {
	return func(o *providerOptions) {
		o.stdout = w
	}
}

// WithoutGlobal keeps the provider out of the otel global registry.
func WithoutGlobal() ProviderOption {
	return func(o *providerOptions) {
		o.global = false
	}
}

// NewProvider creates the tracer and meter providers described by cfg.
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := providerOptions{global: true}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultConfig().ServiceName
	}

	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	exp, err := newSpanExporter(ctx, cfg, o.stdout)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
	}
	traceOpts = append(traceOpts, o.traceOpts...)
	tp := sdktrace.NewTracerProvider(traceOpts...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	metrics, err := NewMetrics(mp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	if o.global {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	}

	return &Provider{
		tp:       tp,
		mp:       mp,
		registry: registry,
		metrics:  metrics,
	}, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Metrics returns the instruments recorded by fetches.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// MetricsHandler serves the provider's registry in Prometheus text format.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return errors.Join(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown flushes any pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}
