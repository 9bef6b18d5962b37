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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
	"github.com/tombee/devctl/internal/devserver"
	"github.com/tombee/devctl/internal/filewatcher"
	"github.com/tombee/devctl/internal/log"
	"github.com/tombee/devctl/internal/tracing"
	pkgerrors "github.com/tombee/devctl/pkg/errors"
)

const (
	// superviseInterval is how often the state is checked after startup.
	superviseInterval = 250 * time.Millisecond

	shutdownTimeout = 5 * time.Second
)

type sessionOptions struct {
	WaitForReady bool
	MinLevel     devserver.LogLevel

	// Registerer receives the otel metric collector. Nil uses the
	// default registry, which also holds the promauto metrics.
	Registerer prometheus.Registerer
}

// runSession starts the dev server described by cfg and supervises it
// until it exits or the command is interrupted.
func runSession(cmd *cobra.Command, cfg *config.Config, so sessionOptions) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stopSignals := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	logger := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    errOut,
		AddSource: cfg.Log.AddSource,
	})

	version, _, _ := shared.GetVersion()
	provider, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Writer:         errOut,
		Registerer:     so.Registerer,
	})
	if err != nil {
		return shared.NewConfigError("failed to set up tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown failed", log.Error(err))
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv, addr, err := serveMetrics(cfg.Metrics.Addr, provider.MetricsHandler(), logger)
		if err != nil {
			return shared.NewConfigError("failed to serve metrics", err)
		}
		logger.Info("serving metrics", slog.String("addr", addr))
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	rep := newReporter(out, so.MinLevel, shared.GetJSON())

	opts := cfg.ManagerOptions()
	opts.Sink = rep.Entry
	opts.Logger = logger
	mgr, err := devserver.NewManager(opts)
	if err != nil {
		return shared.NewConfigError("invalid dev server options", err)
	}

	startOpts := devserver.StartOptions{WaitForReady: so.WaitForReady}
	if so.WaitForReady {
		rep.Waiting(fmt.Sprintf("Waiting for dev server (%s %s)", opts.Command, cfg.DevServer.DefaultURL))
	}
	res := mgr.Start(ctx, startOpts)
	elapsed := rep.StopWaiting()
	if !res.Success {
		if ctx.Err() != nil {
			mgr.Reset(context.Background())
			return nil
		}
		return startFailure(resultErr(res))
	}
	rep.Started(res, so.WaitForReady, elapsed)

	sup := &supervisor{mgr: mgr, interval: superviseInterval, rep: rep}

	var watcher *filewatcher.Service
	if globs := cfg.DevServer.RestartOn; len(globs) > 0 {
		watcher, err = filewatcher.NewService(filewatcher.Options{
			Root:    cfg.DevServer.WorkDir,
			Include: globs,
			Trigger: sup.restartTrigger(startOpts),
			Logger:  logger,
		})
		if err == nil {
			err = watcher.Start(ctx)
		}
		if err != nil {
			mgr.Reset(context.Background())
			return shared.NewConfigError("failed to watch for changes", err)
		}
		defer watcher.Stop()
		sup.watching = true
	}

	waitErr := sup.wait(ctx)

	if watcher != nil {
		_ = watcher.Stop()
	}
	if ctx.Err() != nil {
		rep.Info("Stopping dev server")
		if stop := mgr.Reset(context.Background()); !stop.Success {
			logger.Warn("dev server did not stop cleanly", slog.String("error", stop.Error))
		}
		return nil
	}
	return waitErr
}

// supervisor polls the manager after startup and decides when run is
// finished.
type supervisor struct {
	mgr      *devserver.Manager
	interval time.Duration
	rep      *reporter
	watching bool

	// restartMu is held exclusively for the whole of a triggered restart
	// so the transient stopped state inside Restart is never mistaken for
	// an exit.
	restartMu sync.RWMutex
	idle      bool
}

// wait returns nil when the server exits cleanly or ctx ends, and an
// ExitError when it crashes. With a watcher active, exits are reported
// and waiting continues until the next change restarts the server.
func (s *supervisor) wait(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if done, err := s.check(); done {
			return err
		}
	}
}

func (s *supervisor) check() (bool, error) {
	s.restartMu.RLock()
	defer s.restartMu.RUnlock()

	st := s.mgr.Status()
	switch st.State {
	case devserver.StateStarting, devserver.StateRunning, devserver.StateStopping:
		s.idle = false
		return false, nil
	case devserver.StateCrashed, devserver.StateError:
		if !s.watching {
			return true, shared.NewFailure(st.Error, nil).WithErrorCode(shared.ErrorCodeCrashed)
		}
		if !s.idle {
			s.idle = true
			s.rep.Warn("Dev server failed: " + st.Error + "; waiting for changes")
		}
		return false, nil
	default:
		if !s.watching {
			return true, nil
		}
		if !s.idle {
			s.idle = true
			s.rep.Info("Dev server exited; waiting for changes")
		}
		return false, nil
	}
}

func (s *supervisor) restartTrigger(so devserver.StartOptions) filewatcher.TriggerFunc {
	return func(ctx context.Context, changes []*filewatcher.Change) error {
		s.restartMu.Lock()
		defer s.restartMu.Unlock()

		s.rep.Info("Restarting: " + describeChanges(changes))
		res := s.mgr.Restart(ctx, so)
		if !res.Success {
			return resultErr(res)
		}
		s.idle = false
		s.rep.Started(res, so.WaitForReady, 0)
		return nil
	}
}

// describeChanges summarises a batch for the restart notice.
func describeChanges(changes []*filewatcher.Change) string {
	switch len(changes) {
	case 0:
		return "files changed"
	case 1:
		return changes[0].Rel + " " + string(changes[0].Op)
	default:
		return fmt.Sprintf("%s and %d more changed", changes[0].Rel, len(changes)-1)
	}
}

// startFailure maps a failed Start to an exit error. A readiness timeout
// reports E102 so scripts can tell it apart from a spawn failure.
func startFailure(err error) *shared.ExitError {
	code := shared.ErrorCodeStartFailed
	if pkgerrors.Classify(err) == "timeout" {
		code = shared.ErrorCodeNotReady
	}
	return shared.NewFailure("dev server failed to start", err).WithErrorCode(code)
}

func resultErr(res devserver.StartResult) error {
	if res.Err != nil {
		return res.Err
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return errors.New("unknown error")
}

// serveMetrics listens on addr and serves h at /metrics. The returned
// address is the one actually bound.
func serveMetrics(addr string, h http.Handler, logger *slog.Logger) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Error(err))
		}
	}()
	return srv, ln.Addr().String(), nil
}

// reporter writes dev server output and run notices either as styled
// terminal lines or as JSON lines.
type reporter struct {
	out     io.Writer
	json    bool
	min     devserver.LogLevel
	printer *shared.LogPrinter
	spinner *shared.Spinner

	mu  sync.Mutex
	enc *json.Encoder
}

// jsonLine is one record of --json output.
type jsonLine struct {
	Event string `json:"event"`
	devserver.LogEntry
	PID          int    `json:"pid,omitempty"`
	DevServerURL string `json:"dev_server_url,omitempty"`
}

func newReporter(out io.Writer, min devserver.LogLevel, asJSON bool) *reporter {
	r := &reporter{out: out, json: asJSON, min: min}
	if asJSON {
		r.enc = json.NewEncoder(out)
		return r
	}
	r.spinner = shared.NewSpinnerTo(out)
	r.printer = shared.NewLogPrinter(out, min).WithSpinner(r.spinner)
	return r
}

// Entry is the manager's log sink.
func (r *reporter) Entry(e devserver.LogEntry) {
	if !r.json {
		r.printer.Print(e)
		return
	}
	if !shared.AtLeast(e.Level, r.min) {
		return
	}
	r.emit(jsonLine{Event: "log", LogEntry: e})
}

func (r *reporter) Waiting(msg string) {
	if !r.json {
		r.spinner.Start(msg)
	}
}

func (r *reporter) StopWaiting() time.Duration {
	if r.json {
		return 0
	}
	return r.spinner.Stop()
}

func (r *reporter) Started(res devserver.StartResult, ready bool, elapsed time.Duration) {
	if r.json {
		event := "started"
		if ready {
			event = "ready"
		}
		r.emit(jsonLine{
			Event:        event,
			LogEntry:     r.notice(devserver.LevelInfo, "dev server "+event),
			PID:          res.PID,
			DevServerURL: res.DevServerURL,
		})
		return
	}

	msg := fmt.Sprintf("Dev server started (pid %d)", res.PID)
	if ready {
		msg = fmt.Sprintf("Dev server ready at %s (pid %d)", res.DevServerURL, res.PID)
		if elapsed >= time.Second {
			msg += " in " + shared.FormatElapsed(elapsed)
		}
	}
	fmt.Fprintln(r.out, shared.RenderOK(msg))
}

func (r *reporter) Info(msg string) {
	r.Entry(r.notice(devserver.LevelInfo, msg))
}

func (r *reporter) Warn(msg string) {
	r.Entry(r.notice(devserver.LevelWarn, msg))
}

func (r *reporter) notice(level devserver.LogLevel, msg string) devserver.LogEntry {
	return devserver.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Stream:    devserver.StreamSystem,
	}
}

func (r *reporter) emit(line jsonLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(line)
}
