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

/*
Package tracing wires devctl into OpenTelemetry.

Setup installs a global tracer provider, the W3C trace-context propagator
and a meter provider whose instruments are exposed through the Prometheus
default registry. Instrumented packages keep calling otel.Tracer and
otel.Meter directly; nothing else needs to know which exporter is active.

	provider, err := tracing.Setup(ctx, tracing.Config{
	    ServiceName: "devctl",
	    Exporter:    tracing.ExporterOTLPHTTP,
	    Endpoint:    "http://localhost:4318",
	})
	if err != nil {
	    return err
	}
	defer provider.Shutdown(context.Background())

# Exporters

  - none: spans are created but not exported
  - stdout: pretty-printed JSON on Config.Writer (stdout by default)
  - otlp-http: OTLP over HTTP; Endpoint is a URL or host:port
  - otlp-grpc: OTLP over gRPC; Endpoint is host:port or an https:// URL

An empty Endpoint lets the OTLP exporters fall back to the standard
OTEL_EXPORTER_OTLP_* environment variables.
*/
package tracing
