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

package httpclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// sensitiveParams lists substrings of query parameter names whose values
// are redacted before a URL is logged.
var sensitiveParams = []string{"token", "key", "secret", "password", "auth", "code"}

// loggingTransport wraps an http.RoundTripper and adds:
// - Request logging at debug level
// - User-Agent header injection
// - Trace context propagation
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func newLoggingTransport(base http.RoundTripper, userAgent string, logger *slog.Logger) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTransport{
		base:      base,
		userAgent: userAgent,
		logger:    logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	logURL := redactURL(req.URL)

	if err != nil {
		t.logger.Debug("probe request failed",
			"method", req.Method,
			"url", logURL,
			"duration_ms", duration,
			"error", err.Error(),
		)
		return nil, err
	}

	t.logger.Debug("probe request",
		"method", req.Method,
		"url", logURL,
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}

// redactURL returns u as a string with sensitive query values replaced.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	for param := range q {
		lower := strings.ToLower(param)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(lower, sensitive) {
				q.Set(param, "[REDACTED]")
				break
			}
		}
	}

	safe := *u
	safe.RawQuery = q.Encode()
	return safe.String()
}
