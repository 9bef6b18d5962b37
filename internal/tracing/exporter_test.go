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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExporter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "empty means none", cfg: Config{}, wantNil: true},
		{name: "none", cfg: Config{Exporter: ExporterNone}, wantNil: true},
		{name: "stdout", cfg: Config{Exporter: ExporterStdout}},
		{name: "otlp http url", cfg: Config{Exporter: ExporterOTLPHTTP, Endpoint: "http://127.0.0.1:4318"}},
		{name: "otlp http host port", cfg: Config{Exporter: ExporterOTLPHTTP, Endpoint: "127.0.0.1:4318"}},
		{name: "otlp grpc", cfg: Config{Exporter: ExporterOTLPGRPC, Endpoint: "127.0.0.1:4317"}},
		{name: "otlp grpc https", cfg: Config{Exporter: ExporterOTLPGRPC, Endpoint: "https://collector.example:4317"}},
		{name: "unknown", cfg: Config{Exporter: "jaeger"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, err := CreateExporter(context.Background(), tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, exporter)
				return
			}
			require.NotNil(t, exporter)
			// Nothing was exported, so shutdown does not touch the network.
			assert.NoError(t, exporter.Shutdown(context.Background()))
		})
	}
}

func TestOTLPOptions(t *testing.T) {
	assert.Nil(t, otlpHTTPOptions(""))
	assert.Len(t, otlpHTTPOptions("http://localhost:4318"), 1)
	assert.Len(t, otlpHTTPOptions("localhost:4318"), 2)

	assert.Nil(t, otlpGRPCOptions(""))
	assert.Len(t, otlpGRPCOptions("localhost:4317"), 2)
}
