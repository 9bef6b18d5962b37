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
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter selects the span exporter. Empty means none.
	Exporter string

	// Endpoint is the collector address for the OTLP exporters.
	Endpoint string

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer

	// Registerer receives the otel Prometheus collector. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}
