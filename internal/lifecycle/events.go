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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event names written to the lifecycle audit log.
const (
	EventStart        = "start"
	EventStartSuccess = "start_success"
	EventStartFailure = "start_failure"
	EventStop         = "stop"
	EventForcedKill   = "forced_kill"
	EventStopSuccess  = "stop_success"
	EventStopFailure  = "stop_failure"
	EventExit         = "exit"
	EventCrash        = "crash"
	EventOrphanReaped = "orphan_reaped"
)

// Event is one line of the lifecycle audit log.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	SessionID string    `json:"session_id,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Command   string    `json:"command,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	URL       string    `json:"url,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// EventLogger appends lifecycle events to a JSON-lines file. A nil
// *EventLogger or one with an empty path discards events.
type EventLogger struct {
	mu      sync.Mutex
	logPath string
}

// NewEventLogger creates a logger writing to logPath.
func NewEventLogger(logPath string) *EventLogger {
	return &EventLogger{logPath: logPath}
}

// LogStart records a start request.
func (l *EventLogger) LogStart(sessionID, command string, args []string) error {
	return l.Write(Event{
		Event:     EventStart,
		SessionID: sessionID,
		Command:   strings.TrimSpace(command + " " + strings.Join(args, " ")),
		Success:   true,
		Message:   "Dev server start initiated",
	})
}

// LogStartSuccess records that the dev server reached running.
func (l *EventLogger) LogStartSuccess(sessionID string, pid int, url string, duration time.Duration) error {
	return l.Write(Event{
		Event:     EventStartSuccess,
		SessionID: sessionID,
		PID:       pid,
		URL:       url,
		Success:   true,
		Message:   fmt.Sprintf("Dev server started (duration: %v)", duration.Round(time.Millisecond)),
	})
}

// LogStartFailure records a failed start.
func (l *EventLogger) LogStartFailure(sessionID string, pid int, err error) error {
	return l.Write(Event{
		Event:     EventStartFailure,
		SessionID: sessionID,
		PID:       pid,
		Success:   false,
		Message:   "Dev server failed to start",
		Error:     errString(err),
	})
}

// LogStop records a stop request.
func (l *EventLogger) LogStop(sessionID string, pid int) error {
	return l.Write(Event{
		Event:     EventStop,
		SessionID: sessionID,
		PID:       pid,
		Success:   true,
		Message:   "Dev server stop initiated",
	})
}

// LogForcedKill records escalation after the graceful timeout.
func (l *EventLogger) LogForcedKill(sessionID string, pid int, after time.Duration) error {
	return l.Write(Event{
		Event:     EventForcedKill,
		SessionID: sessionID,
		PID:       pid,
		Success:   true,
		Message:   fmt.Sprintf("Process did not exit within %v, sent forceful signal", after),
	})
}

// LogStopSuccess records a completed stop.
func (l *EventLogger) LogStopSuccess(sessionID string, pid int, duration time.Duration) error {
	return l.Write(Event{
		Event:     EventStopSuccess,
		SessionID: sessionID,
		PID:       pid,
		Success:   true,
		Message:   fmt.Sprintf("Dev server stopped (duration: %v)", duration.Round(time.Millisecond)),
	})
}

// LogStopFailure records a failed stop.
func (l *EventLogger) LogStopFailure(sessionID string, pid int, err error) error {
	return l.Write(Event{
		Event:     EventStopFailure,
		SessionID: sessionID,
		PID:       pid,
		Success:   false,
		Message:   "Failed to stop dev server",
		Error:     errString(err),
	})
}

// LogExit records a process exit that devctl did not initiate. Non-zero
// exit codes are recorded as crashes.
func (l *EventLogger) LogExit(sessionID string, pid int, status ExitStatus) error {
	event := Event{
		Event:     EventExit,
		SessionID: sessionID,
		PID:       pid,
		Signal:    status.Signal,
		Success:   !status.Crashed(),
		Message:   "Dev server exited with " + status.String(),
		Error:     errString(status.Err),
	}
	if status.HasCode() {
		code := status.Code
		event.ExitCode = &code
	}
	if status.Crashed() {
		event.Event = EventCrash
	}
	return l.Write(event)
}

// LogOrphanReaped records that a leftover process from a previous host was killed.
func (l *EventLogger) LogOrphanReaped(pid int, command string) error {
	return l.Write(Event{
		Event:   EventOrphanReaped,
		PID:     pid,
		Command: command,
		Success: true,
		Message: "Killed orphaned dev server left by a previous devctl",
	})
}

// Write appends event to the log, stamping it if Timestamp is zero.
func (l *EventLogger) Write(event Event) error {
	if l == nil || l.logPath == "" {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
