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

package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/devctl/pkg/httpclient"
)

const (
	// DefaultProbeTimeout caps a single readiness probe.
	DefaultProbeTimeout = 2 * time.Second
	// DefaultPollInterval is used by WaitUntilReady for a non-positive interval.
	DefaultPollInterval = 500 * time.Millisecond
)

const meterName = "github.com/tombee/devctl/internal/lifecycle"

// ReadinessProber checks whether an HTTP endpoint answers successfully.
type ReadinessProber struct {
	client       *http.Client
	customClient bool
	logger       *slog.Logger
	probeTimeout time.Duration
	duration     metric.Float64Histogram
}

// NewReadinessProber creates a prober using the devctl probe client.
func NewReadinessProber() *ReadinessProber {
	logger := slog.New(slog.DiscardHandler)

	duration, err := otel.Meter(meterName).Float64Histogram(
		"devctl.readiness.probe.duration",
		metric.WithDescription("Duration of dev server readiness probes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &ReadinessProber{
		client:       probeClient(logger),
		logger:       logger,
		probeTimeout: DefaultProbeTimeout,
		duration:     duration,
	}
}

// probeClient builds the default client. Per-probe deadlines come from the
// request context, so the client timeout is only a backstop.
func probeClient(logger *slog.Logger) *http.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = time.Minute
	cfg.Logger = logger
	client, err := httpclient.New(cfg)
	if err != nil {
		return &http.Client{}
	}
	return client
}

// WithHTTPClient sets a custom HTTP client. Later WithLogger calls leave
// it untouched.
func (p *ReadinessProber) WithHTTPClient(client *http.Client) *ReadinessProber {
	p.client = client
	p.customClient = true
	return p
}

// WithLogger sets the logger used for probe diagnostics, including the
// request logs of the default client.
func (p *ReadinessProber) WithLogger(logger *slog.Logger) *ReadinessProber {
	p.logger = logger
	if !p.customClient {
		p.client = probeClient(logger)
	}
	return p
}

// WithProbeTimeout sets the per-probe cap used by WaitUntilReady.
func (p *ReadinessProber) WithProbeTimeout(timeout time.Duration) *ReadinessProber {
	if timeout > 0 {
		p.probeTimeout = timeout
	}
	return p
}

// Probe issues one HEAD request cancelled after timeout. It returns true
// for a 2xx or 304 response and false for anything else, including errors.
func (p *ReadinessProber) Probe(ctx context.Context, url string, timeout time.Duration) bool {
	start := time.Now()
	ready := p.probe(ctx, url, timeout)

	if p.duration != nil {
		p.duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("ready", ready)))
	}
	return ready
}

func (p *ReadinessProber) probe(ctx context.Context, url string, timeout time.Duration) bool {
	if url == "" || timeout <= 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		p.logger.Debug("invalid probe url", slog.String("url", url), slog.Any("error", err))
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return (resp.StatusCode >= 200 && resp.StatusCode < 300) ||
		resp.StatusCode == http.StatusNotModified
}

// WaitUntilReady polls target every interval until a probe succeeds,
// eligible returns false, ctx is done, or total elapses. target is
// re-evaluated on each poll and a non-positive interval means
// DefaultPollInterval. Eligibility is checked before and after
// every probe so a concurrent stop ends the wait within one interval.
func (p *ReadinessProber) WaitUntilReady(
	ctx context.Context,
	target func() string,
	total, interval time.Duration,
	eligible func() bool,
) bool {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(total)
	attempts := 0

	for {
		if !eligible() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		attempts++
		url := target()
		if p.Probe(ctx, url, min(p.probeTimeout, remaining)) {
			p.logger.Debug("readiness probe succeeded",
				slog.String("url", url),
				slog.Int("attempts", attempts),
			)
			return eligible()
		}

		wait := min(interval, time.Until(deadline))
		if wait <= 0 {
			return false
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
