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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the tracer and meter providers installed by Setup.
type Provider struct {
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	gatherer prometheus.Gatherer
}

// Setup builds the providers described by cfg and installs them as the
// otel globals. Extra tracer provider options are appended, which lets
// tests attach an in-memory syncer.
func Setup(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "devctl"
	}

	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := CreateExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	allOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		allOpts = append(allOpts, sdktrace.WithBatcher(exporter))
	}
	allOpts = append(allOpts, opts...)
	tp := sdktrace.NewTracerProvider(allOpts...)

	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	promExporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(W3CPropagator())

	return &Provider{tp: tp, mp: mp, gatherer: gatherer}, nil
}

// W3CPropagator returns a TextMapPropagator that implements W3C Trace Context.
func W3CPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Meter returns a meter for the given instrumentation scope.
func (p *Provider) Meter(name string) metric.Meter {
	return p.mp.Meter(name)
}

// MetricsHandler serves the registry the otel collector was registered
// with. With the default registerer this also covers promauto metrics.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return errors.Join(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown flushes pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}
