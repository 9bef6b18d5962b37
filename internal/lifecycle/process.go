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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultWaitDelay bounds how long stdout/stderr copying may continue after
// the child exits while a grandchild still holds the pipes open.
const DefaultWaitDelay = 2 * time.Second

// ErrNoPID is returned when the OS accepted a spawn but assigned no PID.
var ErrNoPID = errors.New("no process identifier assigned")

// SpawnError reports that a child process could not be created.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	if e.Err == nil {
		return ErrNoPID.Error()
	}
	return e.Err.Error()
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ErrorType implements the errors.ErrorClassifier interface.
func (e *SpawnError) ErrorType() string { return "spawn" }

// IsRetryable implements the errors.ErrorClassifier interface.
func (e *SpawnError) IsRetryable() bool { return false }

// SignalKind selects between an interceptable and an unconditional signal.
type SignalKind int

const (
	// Graceful asks the process to terminate (SIGTERM).
	Graceful SignalKind = iota
	// Forceful kills the process outright (SIGKILL).
	Forceful
)

func (k SignalKind) String() string {
	if k == Forceful {
		return "forceful"
	}
	return "graceful"
}

func (k SignalKind) signal() unix.Signal {
	if k == Forceful {
		return unix.SIGKILL
	}
	return unix.SIGTERM
}

// SignalTarget records how far down the fallback chain delivery got.
type SignalTarget int

const (
	// SignalGroup means the whole process group received the signal.
	SignalGroup SignalTarget = iota + 1
	// SignalProcess means group delivery failed and only the leader was signalled.
	SignalProcess
	// SignalIgnored means delivery failed entirely; the process is presumed gone.
	SignalIgnored
)

func (t SignalTarget) String() string {
	switch t {
	case SignalGroup:
		return "group"
	case SignalProcess:
		return "process"
	case SignalIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// SignalOutcome is the result of a best-effort signal. Cause is set only
// when Target is SignalIgnored.
type SignalOutcome struct {
	Target SignalTarget
	Cause  error
}

// Ignored reports whether the signal reached nothing.
func (o SignalOutcome) Ignored() bool {
	return o.Target == SignalIgnored
}

// ExitStatus describes how a child process ended. Code is -1 when the
// process was terminated by a signal.
type ExitStatus struct {
	Code   int
	Signal string
	Err    error
}

// HasCode reports whether the process exited normally with a code.
func (s ExitStatus) HasCode() bool {
	return s.Signal == "" && s.Code >= 0
}

// Crashed reports a non-zero exit code. Signal deaths do not count.
func (s ExitStatus) Crashed() bool {
	return s.HasCode() && s.Code != 0
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "signal " + s.Signal
	}
	return fmt.Sprintf("code %d", s.Code)
}

// SpawnOptions describes a child process to start.
type SpawnOptions struct {
	Command string
	Args    []string
	Dir     string

	// Env is merged over the parent environment. With ClearEnv set it is
	// the complete environment instead.
	Env      map[string]string
	ClearEnv bool

	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay defaults to DefaultWaitDelay.
	WaitDelay time.Duration
}

// Process is a handle to a spawned child. It is owned by the caller of
// Spawn and is finished once Done is closed.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	pgid int

	done chan struct{}
	exit ExitStatus
}

// PID returns the child's process ID.
func (p *Process) PID() int {
	return p.pid
}

// Done is closed exactly once, after the child has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exit returns the exit status. The second value is false while the
// process is still running.
func (p *Process) Exit() (ExitStatus, bool) {
	select {
	case <-p.done:
		return p.exit, true
	default:
		return ExitStatus{}, false
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exit = exitStatusFrom(p.cmd.ProcessState, err)
	close(p.done)
}

func exitStatusFrom(state *os.ProcessState, err error) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1, Err: err}
	}

	status := ExitStatus{Code: state.ExitCode()}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Code = -1
		status.Signal = ws.Signal().String()
	}
	// ExitError only restates the state; keep I/O and WaitDelay errors.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		status.Err = err
	}
	return status
}

// ProcessController spawns children in their own process group and
// delivers signals to them.
type ProcessController struct {
	logger *slog.Logger
}

// NewProcessController creates a controller. A nil logger discards output.
func NewProcessController(logger *slog.Logger) *ProcessController {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ProcessController{logger: logger}
}

// Spawn starts the child and begins reaping it in the background.
func (c *ProcessController) Spawn(opts SpawnOptions) (*Process, error) {
	if opts.Command == "" {
		return nil, &SpawnError{Err: errors.New("command is empty")}
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnv(opts.Env, opts.ClearEnv)
	cmd.Stdin = nil
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	// Own process group so the whole tree can be signalled at once.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: opts.Command, Err: err}
	}
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return nil, &SpawnError{Command: opts.Command}
	}

	pid := cmd.Process.Pid
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		// Already exited; Setpgid made it a group leader.
		pgid = pid
	}

	p := &Process{
		cmd:  cmd,
		pid:  pid,
		pgid: pgid,
		done: make(chan struct{}),
	}
	go p.wait()

	c.logger.Debug("spawned process",
		slog.Int("pid", pid),
		slog.String("command", opts.Command),
		slog.String("dir", opts.Dir),
	)
	return p, nil
}

// Signal delivers kind to the process group, falling back to the single
// process. Failures are reported in the outcome, never as an error.
func (c *ProcessController) Signal(p *Process, kind SignalKind) SignalOutcome {
	outcome := deliver(p.pgid, kind.signal(), func(sig unix.Signal) error {
		return p.cmd.Process.Signal(sig)
	})

	c.logger.Debug("signalled process",
		slog.Int("pid", p.pid),
		slog.String("kind", kind.String()),
		slog.String("target", outcome.Target.String()),
	)
	return outcome
}

// WaitForExit reports whether the process exits within timeout.
func (c *ProcessController) WaitForExit(p *Process, timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// SignalPID signals a process that was not spawned by this controller,
// such as an orphan recorded in a PID file. The group is only targeted
// when pid leads its own group.
func SignalPID(pid int, kind SignalKind) SignalOutcome {
	pgid, err := unix.Getpgid(pid)
	if err != nil || pgid != pid {
		pgid = 0
	}
	return deliver(pgid, kind.signal(), func(sig unix.Signal) error {
		return unix.Kill(pid, sig)
	})
}

// IsProcessRunning checks if a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 performs the existence and permission checks only.
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// MatchesCommand reports whether the running process pid was started from
// command. Only the executable's base name is compared.
func MatchesCommand(pid int, command string) bool {
	if command == "" {
		return false
	}
	cmdline, err := ProcessCommand(pid)
	if err != nil {
		return false
	}
	return strings.Contains(cmdline, filepath.Base(command))
}

func deliver(pgid int, sig unix.Signal, single func(unix.Signal) error) SignalOutcome {
	if pgid > 0 {
		if err := unix.Kill(-pgid, sig); err == nil {
			return SignalOutcome{Target: SignalGroup}
		}
	}
	if err := single(sig); err != nil {
		return SignalOutcome{Target: SignalIgnored, Cause: err}
	}
	return SignalOutcome{Target: SignalProcess}
}

func buildEnv(env map[string]string, isolated bool) []string {
	var base []string
	if !isolated {
		base = os.Environ()
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// exec uses the last value for duplicate keys.
	out := make([]string, 0, len(base)+len(keys))
	out = append(out, base...)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
