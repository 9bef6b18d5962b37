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

package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/devctl/internal/lifecycle"
	"github.com/tombee/devctl/internal/log"
	pkgerrors "github.com/tombee/devctl/pkg/errors"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultURL              = "http://localhost:1420"
	DefaultReadyTimeout     = 60 * time.Second
	DefaultPollInterval     = lifecycle.DefaultPollInterval
	DefaultProbeTimeout     = lifecycle.DefaultProbeTimeout
	DefaultGracefulTimeout  = 5 * time.Second
	DefaultForceKillTimeout = 2 * time.Second
)

const tracerName = "github.com/tombee/devctl/internal/devserver"

// ProcessController spawns and signals the child process.
// *lifecycle.ProcessController is the production implementation.
type ProcessController interface {
	Spawn(opts lifecycle.SpawnOptions) (*lifecycle.Process, error)
	Signal(p *lifecycle.Process, kind lifecycle.SignalKind) lifecycle.SignalOutcome
	WaitForExit(p *lifecycle.Process, timeout time.Duration) bool
}

// Prober checks dev server readiness.
// *lifecycle.ReadinessProber is the production implementation.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) bool
	WaitUntilReady(ctx context.Context, target func() string, total, interval time.Duration, eligible func() bool) bool
}

// Options configures a Manager. WorkDir and Command are required.
type Options struct {
	Command string
	Args    []string
	WorkDir string
	Env     map[string]string
	// ClearEnv starts the child with only Env instead of the parent
	// environment plus Env.
	ClearEnv bool

	DefaultURL       string
	ReadyTimeout     time.Duration
	PollInterval     time.Duration
	ProbeTimeout     time.Duration
	GracefulTimeout  time.Duration
	ForceKillTimeout time.Duration

	LogCapacity   int
	MaxLineLength int

	// PIDFile enables orphan reaping when non-empty.
	PIDFile string
	// EventLog enables the JSON-lines lifecycle audit log when non-empty.
	EventLog string

	// Sink is called after every captured entry. It runs on the output
	// copier goroutines and must not block for long.
	Sink func(LogEntry)

	Logger     *slog.Logger
	Controller ProcessController
	Prober     Prober
}

func (o *Options) applyDefaults() {
	if o.DefaultURL == "" {
		o.DefaultURL = DefaultURL
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = DefaultGracefulTimeout
	}
	if o.ForceKillTimeout <= 0 {
		o.ForceKillTimeout = DefaultForceKillTimeout
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = DefaultLogCapacity
	}
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = DefaultMaxLineLength
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
}

// StartOptions controls a single Start call.
type StartOptions struct {
	// WaitForReady blocks Start until the server answers a probe.
	WaitForReady bool
	// Timeout bounds the readiness wait. Zero uses the configured ReadyTimeout.
	Timeout time.Duration
}

// DefaultStartOptions waits for readiness using the configured timeout.
func DefaultStartOptions() StartOptions {
	return StartOptions{WaitForReady: true}
}

// StartResult reports the outcome of Start.
type StartResult struct {
	Success      bool   `json:"success"`
	PID          int    `json:"pid,omitempty"`
	DevServerURL string `json:"dev_server_url,omitempty"`
	Error        string `json:"error,omitempty"`
	Err          error  `json:"-"`
}

// StopResult reports the outcome of Stop.
type StopResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// Status is a snapshot of the manager. Optional fields are omitted when
// they have no value.
type Status struct {
	State        State      `json:"state"`
	SessionID    string     `json:"session_id,omitempty"`
	PID          int        `json:"pid,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	UptimeMs     *int64     `json:"uptime_ms,omitempty"`
	DevServerURL string     `json:"dev_server_url,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// LogQuery filters GetLogs.
type LogQuery struct {
	Level LogLevel
	Limit int
}

// Manager owns one dev server process and its state machine. It is safe
// for concurrent use.
type Manager struct {
	opts       Options
	controller ProcessController
	prober     Prober
	logs       *LogBuffer
	events     *lifecycle.EventLogger
	pidFile    *lifecycle.PIDFileManager
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	// stopMu serialises stop sequences and the spawn step of Start.
	stopMu sync.Mutex

	mu          sync.Mutex
	state       State
	sessionID   string
	proc        *lifecycle.Process
	pid         int
	startTime   time.Time
	detectedURL string
	lastError   string

	// exitErr is set when the process exits without Stop being called.
	exitErr *ExitError
}

// NewManager validates opts and creates a stopped Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.WorkDir == "" {
		return nil, &pkgerrors.ValidationError{
			Field:      "work_dir",
			Message:    "working directory is required",
			Suggestion: "Set dev_server.work_dir or pass --cwd",
		}
	}
	if opts.Command == "" {
		return nil, &pkgerrors.ValidationError{
			Field:      "command",
			Message:    "command is required",
			Suggestion: "Set dev_server.command or pass the command after --",
		}
	}
	opts.applyDefaults()

	m := &Manager{
		opts:       opts,
		controller: opts.Controller,
		prober:     opts.Prober,
		logs:       NewLogBuffer(opts.LogCapacity),
		events:     lifecycle.NewEventLogger(opts.EventLog),
		logger:     log.WithComponent(opts.Logger, "devserver"),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		state:      StateStopped,
	}
	if m.controller == nil {
		m.controller = lifecycle.NewProcessController(log.WithComponent(opts.Logger, "process"))
	}
	if m.prober == nil {
		m.prober = lifecycle.NewReadinessProber().
			WithLogger(log.WithComponent(opts.Logger, "readiness")).
			WithProbeTimeout(opts.ProbeTimeout)
	}
	if opts.PIDFile != "" {
		m.pidFile = lifecycle.NewPIDFileManager(opts.PIDFile)
	}
	recordState(StateStopped)
	return m, nil
}

// Start spawns the dev server. With WaitForReady it blocks until the
// server answers a probe, the process exits, Stop is called, ctx ends, or
// the timeout elapses. Every failure after spawning tears the process
// down before returning.
func (m *Manager) Start(ctx context.Context, so StartOptions) StartResult {
	ctx, span := m.tracer.Start(ctx, "devserver.Start",
		trace.WithAttributes(
			attribute.String("devserver.command", m.opts.Command),
			attribute.Bool("devserver.wait_for_ready", so.WaitForReady),
		))
	defer span.End()

	result := m.start(ctx, so)
	recordStart(resultLabel(result.Err))
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Error)
	} else {
		span.SetAttributes(attribute.Int("devserver.pid", result.PID))
	}
	return result
}

func (m *Manager) start(ctx context.Context, so StartOptions) StartResult {
	startedAt := m.now()

	m.mu.Lock()
	if !m.state.CanStart() {
		state := m.state
		m.mu.Unlock()
		return failedStart(&PreconditionError{State: state})
	}
	session := uuid.NewString()
	m.reapPreviousLocked()
	m.sessionID = session
	m.lastError = ""
	m.exitErr = nil
	m.clearSessionLocked()
	m.logs.Clear()
	m.setStateLocked(StateStarting)
	m.mu.Unlock()

	logger := m.logger.With(slog.String(log.SessionKey, session))
	logger.Info("starting dev server",
		slog.String("command", m.opts.Command),
		slog.String("work_dir", m.opts.WorkDir),
	)
	m.events.LogStart(session, m.opts.Command, m.opts.Args)

	proc, err := m.spawn(session)
	if err != nil {
		if !errors.Is(err, ErrStartAborted) {
			m.mu.Lock()
			if m.sessionID == session {
				m.lastError = err.Error()
				m.setStateLocked(StateError)
			}
			m.mu.Unlock()
		}
		logger.Error("dev server failed to start", log.Error(err))
		m.events.LogStartFailure(session, 0, err)
		return failedStart(err)
	}

	pid := proc.PID()
	logger = log.WithSession(m.logger, session, pid)
	logger.Info("dev server spawned")

	if !so.WaitForReady {
		m.mu.Lock()
		if m.sessionID == session && m.state == StateStarting {
			m.setStateLocked(StateRunning)
			url := m.detectedURL
			m.mu.Unlock()
			m.events.LogStartSuccess(session, pid, url, m.now().Sub(startedAt))
			return StartResult{Success: true, PID: pid, DevServerURL: url}
		}
		m.mu.Unlock()
		err := m.startFailure(ctx, session, 0)
		m.events.LogStartFailure(session, pid, err)
		return failedStart(err)
	}

	timeout := so.Timeout
	if timeout <= 0 {
		timeout = m.opts.ReadyTimeout
	}

	waitStart := m.now()
	ready := m.prober.WaitUntilReady(ctx, m.probeTarget, timeout, m.opts.PollInterval, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.sessionID == session && m.state == StateStarting
	})
	recordReadyWait(m.now().Sub(waitStart).Seconds())

	if ready {
		m.mu.Lock()
		if m.sessionID == session && m.state == StateStarting {
			if m.detectedURL == "" {
				m.detectedURL = m.opts.DefaultURL
			}
			url := m.detectedURL
			m.setStateLocked(StateRunning)
			m.mu.Unlock()

			logger.Info("dev server ready", slog.String(log.URLKey, url),
				slog.Int64(log.DurationKey, m.now().Sub(startedAt).Milliseconds()))
			m.events.LogStartSuccess(session, pid, url, m.now().Sub(startedAt))
			return StartResult{Success: true, PID: pid, DevServerURL: url}
		}
		m.mu.Unlock()
	}

	err = m.startFailure(ctx, session, timeout)

	// Compensate: a process that is still ours goes through the full stop.
	var exitErr *ExitError
	if !errors.Is(err, ErrStartAborted) && !errors.As(err, &exitErr) {
		m.stop(context.WithoutCancel(ctx))
	}

	if !errors.Is(err, ErrStartAborted) {
		m.mu.Lock()
		if m.sessionID == session {
			m.lastError = err.Error()
		}
		m.mu.Unlock()
	}

	logger.Warn("dev server start failed", log.Error(err))
	m.events.LogStartFailure(session, pid, err)
	return failedStart(err)
}

// spawn runs under stopMu so a concurrent Stop either sees the process
// or runs entirely before it exists.
func (m *Manager) spawn(session string) (*lifecycle.Process, error) {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	m.mu.Lock()
	aborted := m.sessionID != session || m.state != StateStarting
	m.mu.Unlock()
	if aborted {
		return nil, ErrStartAborted
	}

	m.reapOrphan(session)

	watcher := NewOutputWatcher(WatcherOptions{
		OnEntry:       func(e LogEntry) { m.record(session, e) },
		OnURL:         func(url string) { m.setDetectedURL(session, url) },
		MaxLineLength: m.opts.MaxLineLength,
		Now:           m.now,
	})

	proc, err := m.controller.Spawn(lifecycle.SpawnOptions{
		Command:  m.opts.Command,
		Args:     m.opts.Args,
		Dir:      m.opts.WorkDir,
		Env:      m.opts.Env,
		ClearEnv: m.opts.ClearEnv,
		Stdout:   watcher.Writer(StreamStdout),
		Stderr:   watcher.Writer(StreamStderr),
	})
	if err != nil {
		return nil, spawnFailure(err)
	}

	m.mu.Lock()
	m.proc = proc
	m.pid = proc.PID()
	m.startTime = m.now()
	if m.pidFile != nil {
		if err := m.pidFile.Create(m.pid); err != nil {
			m.logger.Warn("failed to write PID file",
				slog.String("path", m.pidFile.Path()), log.Error(err))
		}
	}
	m.mu.Unlock()

	go m.watchExit(session, proc)
	return proc, nil
}

// startFailure explains why a session that was starting did not reach
// running. It must be called without m.mu held.
func (m *Manager) startFailure(ctx context.Context, session string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.sessionID != session:
		return ErrStartAborted
	case m.exitErr != nil:
		return m.exitErr
	case m.state != StateStarting:
		return ErrStartAborted
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrStartCancelled, ctx.Err())
	default:
		return readinessTimeout(timeout)
	}
}

// Stop terminates the dev server: graceful signal, bounded wait, then a
// forceful signal if needed. Stopping a stopped manager succeeds.
// Teardown is not cut short by ctx.
func (m *Manager) Stop(ctx context.Context) StopResult {
	ctx, span := m.tracer.Start(ctx, "devserver.Stop")
	defer span.End()

	result := m.stop(ctx)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Error)
	}
	return result
}

func (m *Manager) stop(ctx context.Context) StopResult {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		recordStop("noop")
		return StopResult{Success: true}
	}

	proc, session, pid := m.proc, m.sessionID, m.pid
	if proc == nil {
		// error, crashed, or a start that never spawned
		m.clearSessionLocked()
		m.setStateLocked(StateStopped)
		m.mu.Unlock()
		recordStop("noop")
		return StopResult{Success: true}
	}
	m.setStateLocked(StateStopping)
	m.mu.Unlock()

	stoppedAt := m.now()
	logger := log.WithSession(m.logger, session, pid)
	logger.Info("stopping dev server")
	m.events.LogStop(session, pid)

	forced, err := m.teardown(ctx, session, proc)
	if err != nil {
		terr := &TeardownError{Cause: err}
		m.mu.Lock()
		if m.sessionID == session {
			m.lastError = terr.Error()
			m.setStateLocked(StateError)
		}
		m.mu.Unlock()

		logger.Error("dev server stop failed", log.Error(terr))
		m.events.LogStopFailure(session, pid, terr)
		recordStop("failed")
		return StopResult{Error: terr.Error(), Err: terr}
	}

	m.mu.Lock()
	if m.sessionID == session {
		m.clearSessionLocked()
		m.setStateLocked(StateStopped)
	}
	m.mu.Unlock()

	m.record(session, m.systemEntry(LevelInfo, "Dev server stopped"))
	logger.Info("dev server stopped", slog.Bool("forced", forced),
		slog.Int64(log.DurationKey, m.now().Sub(stoppedAt).Milliseconds()))
	m.events.LogStopSuccess(session, pid, m.now().Sub(stoppedAt))
	if forced {
		recordStop("forced")
	} else {
		recordStop("graceful")
	}
	return StopResult{Success: true}
}

// teardown converts a panic anywhere in the signal sequence into an error.
func (m *Manager) teardown(ctx context.Context, session string, proc *lifecycle.Process) (forced bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	span := trace.SpanFromContext(ctx)

	outcome := m.controller.Signal(proc, lifecycle.Graceful)
	span.AddEvent("signal", trace.WithAttributes(
		attribute.String("kind", lifecycle.Graceful.String()),
		attribute.String("target", outcome.Target.String()),
	))
	if m.controller.WaitForExit(proc, m.opts.GracefulTimeout) {
		return false, nil
	}

	m.record(session, m.systemEntry(LevelWarn, fmt.Sprintf(
		"Dev server did not exit within %dms, sending forceful signal",
		m.opts.GracefulTimeout.Milliseconds())))
	m.events.LogForcedKill(session, proc.PID(), m.opts.GracefulTimeout)

	outcome = m.controller.Signal(proc, lifecycle.Forceful)
	span.AddEvent("signal", trace.WithAttributes(
		attribute.String("kind", lifecycle.Forceful.String()),
		attribute.String("target", outcome.Target.String()),
	))
	// Best effort; the outcome of the second wait is not checked.
	m.controller.WaitForExit(proc, m.opts.ForceKillTimeout)
	return true, nil
}

// watchExit handles an exit the manager did not initiate.
func (m *Manager) watchExit(session string, proc *lifecycle.Process) {
	<-proc.Done()
	status, _ := proc.Exit()

	m.mu.Lock()
	if m.sessionID != session || m.proc != proc || m.state == StateStopping {
		// Stale session, or Stop owns the teardown.
		m.mu.Unlock()
		return
	}

	wasRunning := m.state == StateRunning
	pid := m.pid
	crashed := wasRunning && status.Crashed()
	m.exitErr = &ExitError{Status: status, BeforeReady: !wasRunning}
	var entry LogEntry
	switch {
	case crashed:
		m.lastError = m.exitErr.Error()
		m.setStateLocked(StateCrashed)
		entry = m.systemEntry(LevelError, m.lastError)
	case status.Crashed():
		m.setStateLocked(StateStopped)
		entry = m.systemEntry(LevelError, "Dev server exited with "+status.String())
	default:
		m.setStateLocked(StateStopped)
		entry = m.systemEntry(LevelInfo, "Dev server exited with "+status.String())
	}
	m.clearSessionLocked()
	m.mu.Unlock()

	m.record(session, entry)
	m.events.LogExit(session, pid, status)

	kind := "clean"
	switch {
	case status.Crashed():
		kind = "crash"
	case !status.HasCode():
		kind = "signal"
	}
	recordExit(kind)

	logger := log.WithSession(m.logger, session, pid)
	if crashed {
		logger.Error("dev server crashed", slog.String("exit", status.String()))
	} else {
		logger.Info("dev server exited", slog.String("exit", status.String()))
	}
}

// Restart stops the dev server, if running, and starts it again.
func (m *Manager) Restart(ctx context.Context, so StartOptions) StartResult {
	if res := m.Stop(ctx); !res.Success {
		return StartResult{Error: res.Error, Err: res.Err}
	}
	return m.Start(ctx, so)
}

// Reset best-effort stops any process and returns the manager to its
// initial state, discarding logs and the last error.
func (m *Manager) Reset(ctx context.Context) StopResult {
	res := m.Stop(ctx)

	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc != nil {
		// Stop failed; make sure nothing survives the reset.
		m.controller.Signal(m.proc, lifecycle.Forceful)
	}
	m.sessionID = ""
	m.lastError = ""
	m.exitErr = nil
	m.clearSessionLocked()
	m.logs.Clear()
	m.setStateLocked(StateStopped)
	return res
}

// Status returns a snapshot of the current state. It never blocks on I/O.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		State:        m.state,
		SessionID:    m.sessionID,
		PID:          m.pid,
		DevServerURL: m.detectedURL,
		Error:        m.lastError,
	}
	if !m.startTime.IsZero() {
		start := m.startTime
		uptime := m.now().Sub(start).Milliseconds()
		s.StartTime = &start
		s.UptimeMs = &uptime
	}
	return s
}

// IsReady probes the detected URL, or the default URL, once.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.prober.Probe(ctx, m.probeTarget(), m.opts.ProbeTimeout)
}

// WaitForReady blocks until the current session answers a probe. It gives
// up when the session stops being starting or running, when ctx ends, or
// after timeout. A zero timeout uses the configured ReadyTimeout.
func (m *Manager) WaitForReady(ctx context.Context, timeout time.Duration) bool {
	ctx, span := m.tracer.Start(ctx, "devserver.WaitForReady")
	defer span.End()

	if timeout <= 0 {
		timeout = m.opts.ReadyTimeout
	}

	m.mu.Lock()
	session := m.sessionID
	m.mu.Unlock()

	ready := m.prober.WaitUntilReady(ctx, m.probeTarget, timeout, m.opts.PollInterval, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.sessionID == session && (m.state == StateStarting || m.state == StateRunning)
	})
	span.SetAttributes(attribute.Bool("devserver.ready", ready))
	return ready
}

// GetLogs returns captured entries, oldest first.
func (m *Manager) GetLogs(q LogQuery) []LogEntry {
	return m.logs.Entries(q.Level, q.Limit)
}

func (m *Manager) probeTarget() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detectedURL != "" {
		return m.detectedURL
	}
	return m.opts.DefaultURL
}

func (m *Manager) setDetectedURL(session, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == session && m.state.Active() {
		m.detectedURL = url
	}
}

// record pushes an entry for session, dropping it if a newer session has
// started since.
func (m *Manager) record(session string, e LogEntry) {
	m.mu.Lock()
	if m.sessionID != session {
		m.mu.Unlock()
		return
	}
	m.logs.Push(e)
	m.mu.Unlock()

	recordLogEntry(e.Level)
	if m.opts.Sink != nil {
		m.opts.Sink(e)
	}
}

func (m *Manager) systemEntry(level LogLevel, message string) LogEntry {
	return LogEntry{
		Timestamp: m.now(),
		Level:     level,
		Message:   message,
		Stream:    StreamSystem,
	}
}

// reapOrphan kills a dev server left running by a devctl that died
// without cleaning up. Only called from spawn.
func (m *Manager) reapOrphan(session string) {
	if m.pidFile == nil || !m.pidFile.Exists() {
		return
	}
	if m.pidFile.Locked() {
		m.logger.Warn("PID file is held by another devctl", slog.String("path", m.pidFile.Path()))
		return
	}

	pid, err := m.pidFile.Read()
	if err == nil && lifecycle.IsProcessRunning(pid) && lifecycle.MatchesCommand(pid, m.opts.Command) {
		outcome := lifecycle.SignalPID(pid, lifecycle.Forceful)
		m.record(session, m.systemEntry(LevelWarn,
			fmt.Sprintf("Killed orphaned dev server (pid %d) left by a previous run", pid)))
		m.events.LogOrphanReaped(pid, m.opts.Command)
		m.logger.Warn("reaped orphaned dev server",
			slog.Int(log.PIDKey, pid), slog.String("target", outcome.Target.String()))
	}

	if err := m.pidFile.Remove(); err != nil {
		m.logger.Warn("failed to remove stale PID file", log.Error(err))
	}
}

// reapPreviousLocked kills a process left behind by a failed teardown
// before a new session replaces it. m.mu must be held.
func (m *Manager) reapPreviousLocked() {
	if m.proc == nil {
		return
	}
	if _, exited := m.proc.Exit(); !exited {
		m.controller.Signal(m.proc, lifecycle.Forceful)
	}
}

// clearSessionLocked resets per-process metadata. m.mu must be held.
func (m *Manager) clearSessionLocked() {
	if m.pidFile != nil && m.proc != nil {
		if err := m.pidFile.Remove(); err != nil {
			m.logger.Warn("failed to remove PID file", log.Error(err))
		}
	}
	m.proc = nil
	m.pid = 0
	m.startTime = time.Time{}
	m.detectedURL = ""
}

// setStateLocked transitions to s. m.mu must be held.
func (m *Manager) setStateLocked(s State) {
	if m.state != s {
		m.logger.Debug("state transition",
			slog.String("from", string(m.state)),
			slog.String(log.StateKey, string(s)))
	}
	m.state = s
	recordState(s)
}

func failedStart(err error) StartResult {
	return StartResult{Error: err.Error(), Err: err}
}
