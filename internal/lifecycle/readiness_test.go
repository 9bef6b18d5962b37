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
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestReadinessProber_Probe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"200 is ready", http.StatusOK, true},
		{"204 is ready", http.StatusNoContent, true},
		{"304 is ready", http.StatusNotModified, true},
		{"404 is not ready", http.StatusNotFound, false},
		{"503 is not ready", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := statusServer(t, tt.status)
			prober := NewReadinessProber()

			if got := prober.Probe(context.Background(), server.URL, time.Second); got != tt.want {
				t.Errorf("Probe() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("uses HEAD", func(t *testing.T) {
		var method atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method.Store(r.Method)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		NewReadinessProber().Probe(context.Background(), server.URL, time.Second)
		if got := method.Load(); got != http.MethodHead {
			t.Errorf("method = %v, want HEAD", got)
		}
	})

	t.Run("returns false on connection failure", func(t *testing.T) {
		if NewReadinessProber().Probe(context.Background(), "http://127.0.0.1:1", time.Second) {
			t.Error("Probe() = true, want false")
		}
	})

	t.Run("returns false for malformed url", func(t *testing.T) {
		if NewReadinessProber().Probe(context.Background(), "http://[::1", time.Second) {
			t.Error("Probe() = true, want false")
		}
		if NewReadinessProber().Probe(context.Background(), "", time.Second) {
			t.Error("Probe(\"\") = true, want false")
		}
	})

	t.Run("cancels at the timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		start := time.Now()
		if NewReadinessProber().Probe(context.Background(), server.URL, 100*time.Millisecond) {
			t.Error("Probe() = true, want false (should timeout)")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Probe() took %v, timeout not enforced", elapsed)
		}
	})
}

func TestReadinessProber_WaitUntilReady(t *testing.T) {
	always := func() bool { return true }

	t.Run("returns immediately for ready endpoint", func(t *testing.T) {
		server := statusServer(t, http.StatusOK)
		prober := NewReadinessProber()

		start := time.Now()
		ok := prober.WaitUntilReady(context.Background(), func() string { return server.URL },
			5*time.Second, 50*time.Millisecond, always)

		if !ok {
			t.Error("WaitUntilReady() = false, want true")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("WaitUntilReady() took %v, should be nearly instant", elapsed)
		}
	})

	t.Run("waits for endpoint to become ready", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ok := NewReadinessProber().WaitUntilReady(context.Background(),
			func() string { return server.URL }, 5*time.Second, 20*time.Millisecond, always)

		if !ok {
			t.Error("WaitUntilReady() = false, want true")
		}
		if got := attempts.Load(); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
	})

	t.Run("non-positive interval keeps polling until ready", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		for _, interval := range []time.Duration{0, -time.Second} {
			attempts.Store(0)
			ok := NewReadinessProber().WaitUntilReady(context.Background(),
				func() string { return server.URL }, 5*time.Second, interval, always)

			if !ok {
				t.Errorf("WaitUntilReady(interval=%v) = false, want true", interval)
			}
			if got := attempts.Load(); got != 3 {
				t.Errorf("WaitUntilReady(interval=%v) attempts = %d, want 3", interval, got)
			}
		}
	})

	t.Run("times out", func(t *testing.T) {
		server := statusServer(t, http.StatusServiceUnavailable)

		start := time.Now()
		ok := NewReadinessProber().WaitUntilReady(context.Background(),
			func() string { return server.URL }, 200*time.Millisecond, 50*time.Millisecond, always)
		elapsed := time.Since(start)

		if ok {
			t.Error("WaitUntilReady() = true, want false")
		}
		if elapsed < 200*time.Millisecond || elapsed > time.Second {
			t.Errorf("WaitUntilReady() took %v, want about 200ms", elapsed)
		}
	})

	t.Run("stops within one interval when no longer eligible", func(t *testing.T) {
		server := statusServer(t, http.StatusServiceUnavailable)

		var eligible atomic.Bool
		eligible.Store(true)
		time.AfterFunc(100*time.Millisecond, func() { eligible.Store(false) })

		start := time.Now()
		ok := NewReadinessProber().WaitUntilReady(context.Background(),
			func() string { return server.URL }, 10*time.Second, 50*time.Millisecond, eligible.Load)
		elapsed := time.Since(start)

		if ok {
			t.Error("WaitUntilReady() = true, want false")
		}
		if elapsed > time.Second {
			t.Errorf("WaitUntilReady() took %v after eligibility ended", elapsed)
		}
	})

	t.Run("never probes when ineligible", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ok := NewReadinessProber().WaitUntilReady(context.Background(),
			func() string { return server.URL }, time.Second, 50*time.Millisecond,
			func() bool { return false })

		if ok {
			t.Error("WaitUntilReady() = true, want false")
		}
		if hits.Load() != 0 {
			t.Errorf("server received %d probes, want 0", hits.Load())
		}
	})

	t.Run("re-evaluates target each poll", func(t *testing.T) {
		ready := statusServer(t, http.StatusOK)

		var polls atomic.Int32
		target := func() string {
			if polls.Add(1) < 3 {
				return "http://127.0.0.1:1"
			}
			return ready.URL
		}

		ok := NewReadinessProber().WaitUntilReady(context.Background(),
			target, 5*time.Second, 20*time.Millisecond, always)
		if !ok {
			t.Error("WaitUntilReady() = false, want true")
		}
		if polls.Load() != 3 {
			t.Errorf("target evaluated %d times, want 3", polls.Load())
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := statusServer(t, http.StatusServiceUnavailable)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		ok := NewReadinessProber().WaitUntilReady(ctx,
			func() string { return server.URL }, 10*time.Second, 50*time.Millisecond, always)

		if ok {
			t.Error("WaitUntilReady() = true, want false")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("WaitUntilReady() took %v after cancellation", elapsed)
		}
	})
}

func TestReadinessProber_WithLogger(t *testing.T) {
	server := statusServer(t, http.StatusOK)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if !NewReadinessProber().WithLogger(logger).Probe(context.Background(), server.URL, time.Second) {
		t.Fatal("Probe() = false, want true")
	}
	if !strings.Contains(buf.String(), "probe request") {
		t.Errorf("request log did not reach the prober's logger: %q", buf.String())
	}

	buf.Reset()
	prober := NewReadinessProber().WithHTTPClient(server.Client()).WithLogger(logger)
	if !prober.Probe(context.Background(), server.URL, time.Second) {
		t.Fatal("Probe() with custom client = false, want true")
	}
	if strings.Contains(buf.String(), "probe request") {
		t.Errorf("custom client should be kept, got request log %q", buf.String())
	}
}
