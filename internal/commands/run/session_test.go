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

package run

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
	"github.com/tombee/devctl/internal/devserver"
	"github.com/tombee/devctl/internal/filewatcher"
	"github.com/tombee/devctl/internal/log"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes made by the
// output copiers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, script string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DevServer.WorkDir = t.TempDir()
	cfg.DevServer.Command = "sh"
	cfg.DevServer.Args = []string{"-c", script}
	cfg.DevServer.PollInterval = config.Duration(50 * time.Millisecond)
	cfg.DevServer.GracefulTimeout = config.Duration(time.Second)
	cfg.DevServer.ForceKillTimeout = config.Duration(time.Second)
	cfg.Log.Level = "error"
	return cfg
}

func testCommand(ctx context.Context) (*cobra.Command, *syncBuffer) {
	out := &syncBuffer{}
	cmd := &cobra.Command{Use: "run"}
	cmd.SetContext(ctx)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	return cmd, out
}

func noWait() sessionOptions {
	return sessionOptions{Registerer: prometheus.NewRegistry()}
}

func TestRunSession_CleanExit(t *testing.T) {
	cfg := testConfig(t, "echo hello from the server; sleep 0.3")
	cmd, out := testCommand(context.Background())

	err := runSession(cmd, cfg, noWait())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello from the server")
	assert.Contains(t, out.String(), "Dev server started")
}

func TestRunSession_CrashExitsOne(t *testing.T) {
	cfg := testConfig(t, "sleep 0.3; exit 3")
	cmd, _ := testCommand(context.Background())

	err := runSession(cmd, cfg, noWait())
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitFailure, exitErr.Code)
	assert.Equal(t, shared.ErrorCodeCrashed, exitErr.ErrorCode)
	assert.NotEmpty(t, exitErr.Message)
}

func TestRunSession_SpawnFailure(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.DevServer.Command = "devctl-test-no-such-command"
	cfg.DevServer.Args = nil
	cmd, _ := testCommand(context.Background())

	err := runSession(cmd, cfg, noWait())
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitFailure, exitErr.Code)
	assert.Equal(t, shared.ErrorCodeStartFailed, exitErr.ErrorCode)
}

func TestRunSession_ReadyTimeout(t *testing.T) {
	cfg := testConfig(t, "sleep 30")
	cfg.DevServer.DefaultURL = "http://127.0.0.1:1"
	cfg.DevServer.ReadyTimeout = config.Duration(300 * time.Millisecond)
	cmd, _ := testCommand(context.Background())

	so := noWait()
	so.WaitForReady = true
	err := runSession(cmd, cfg, so)
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitFailure, exitErr.Code)
	assert.Equal(t, shared.ErrorCodeNotReady, exitErr.ErrorCode)
}

func TestRunSession_ReadyThenInterrupt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t, "sleep 30")
	cfg.DevServer.DefaultURL = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd, out := testCommand(ctx)

	so := noWait()
	so.WaitForReady = true

	done := make(chan error, 1)
	go func() { done <- runSession(cmd, cfg, so) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Dev server ready at "+srv.URL)
	}, 10*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after interrupt")
	}
	assert.Contains(t, out.String(), "Stopping dev server")
}

func TestRunSession_JSONLines(t *testing.T) {
	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)

	cfg := testConfig(t, "echo json line; sleep 0.3")
	cmd, out := testCommand(context.Background())

	require.NoError(t, runSession(cmd, cfg, noWait()))

	events := map[string][]jsonLine{}
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var line jsonLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), "line: %s", sc.Text())
		events[line.Event] = append(events[line.Event], line)
	}

	require.Len(t, events["started"], 1)
	assert.NotZero(t, events["started"][0].PID)

	var found bool
	for _, l := range events["log"] {
		if l.Message == "json line" && l.Stream == devserver.StreamStdout {
			found = true
		}
	}
	assert.True(t, found, "expected stdout entry in %v", events["log"])
}

func TestRunSession_InvalidRestartGlob(t *testing.T) {
	cfg := testConfig(t, "sleep 30")
	cfg.DevServer.RestartOn = []string{"src/[unclosed"}
	cmd, _ := testCommand(context.Background())

	err := runSession(cmd, cfg, noWait())
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitConfigError, exitErr.Code)
}

func newTestManager(t *testing.T, script string) *devserver.Manager {
	t.Helper()
	cfg := testConfig(t, script)
	opts := cfg.ManagerOptions()
	opts.Logger = log.Discard()
	mgr, err := devserver.NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Reset(context.Background()) })
	return mgr
}

func TestSupervisor_RestartTrigger(t *testing.T) {
	mgr := newTestManager(t, "sleep 30")
	res := mgr.Start(context.Background(), devserver.StartOptions{})
	require.True(t, res.Success, res.Error)

	out := &syncBuffer{}
	sup := &supervisor{mgr: mgr, interval: 10 * time.Millisecond, rep: newReporter(out, "", false), watching: true}
	trigger := sup.restartTrigger(devserver.StartOptions{})

	err := trigger(context.Background(), []*filewatcher.Change{{Rel: "src/app.ts", Op: filewatcher.OpModified}})
	require.NoError(t, err)

	st := mgr.Status()
	assert.Equal(t, devserver.StateRunning, st.State)
	assert.NotEqual(t, res.PID, st.PID)
	assert.Contains(t, out.String(), "Restarting: src/app.ts modified")
}

func TestSupervisor_WatchingKeepsWaitingAfterCrash(t *testing.T) {
	mgr := newTestManager(t, "sleep 0.2; exit 4")
	res := mgr.Start(context.Background(), devserver.StartOptions{})
	require.True(t, res.Success, res.Error)

	out := &syncBuffer{}
	sup := &supervisor{mgr: mgr, interval: 10 * time.Millisecond, rep: newReporter(out, "", false), watching: true}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sup.wait(ctx))
	assert.Contains(t, out.String(), "waiting for changes")
	assert.Equal(t, 1, strings.Count(out.String(), "waiting for changes"))
}

func TestDescribeChanges(t *testing.T) {
	assert.Equal(t, "files changed", describeChanges(nil))
	assert.Equal(t, "a.go created", describeChanges([]*filewatcher.Change{{Rel: "a.go", Op: filewatcher.OpCreated}}))
	assert.Equal(t, "a.go and 2 more changed", describeChanges([]*filewatcher.Change{
		{Rel: "a.go"}, {Rel: "b.go"}, {Rel: "c.go"},
	}))
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "devctl_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, addr, err := serveMetrics("127.0.0.1:0", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log.Discard())
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "devctl_test_total 1")
}
