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
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// CreateExporter creates a span exporter from configuration.
// It returns nil, nil for the none exporter.
func CreateExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterNone, "":
		return nil, nil

	case ExporterStdout:
		writer := cfg.Writer
		if writer == nil {
			writer = os.Stdout
		}
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(writer),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return exporter, nil

	case ExporterOTLPHTTP:
		exporter, err := otlptracehttp.New(ctx, otlpHTTPOptions(cfg.Endpoint)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
		return exporter, nil

	case ExporterOTLPGRPC:
		exporter, err := otlptracegrpc.New(ctx, otlpGRPCOptions(cfg.Endpoint)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}
}

// otlpHTTPOptions accepts either a full URL or a bare host:port, which is
// treated as a plaintext local collector.
func otlpHTTPOptions(endpoint string) []otlptracehttp.Option {
	switch {
	case endpoint == "":
		return nil
	case strings.Contains(endpoint, "://"):
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	default:
		return []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		}
	}
}

// otlpGRPCOptions dials with TLS only for https:// endpoints. Bare
// host:port and http:// endpoints use plaintext.
func otlpGRPCOptions(endpoint string) []otlptracegrpc.Option {
	if endpoint == "" {
		return nil
	}

	creds := insecure.NewCredentials()
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}

	return []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(strings.TrimSuffix(endpoint, "/")),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(creds)),
	}
}
