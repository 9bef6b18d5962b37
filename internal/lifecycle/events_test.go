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
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open event log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestEventLogger_Sequence(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "lifecycle.jsonl")
	l := NewEventLogger(logPath)

	const session = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	steps := []error{
		l.LogStart(session, "npm", []string{"run", "dev"}),
		l.LogStartSuccess(session, 42, "http://localhost:5173", 1500*time.Millisecond),
		l.LogStop(session, 42),
		l.LogForcedKill(session, 42, 5*time.Second),
		l.LogStopSuccess(session, 42, 7*time.Second),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}

	events := readEvents(t, logPath)
	want := []string{EventStart, EventStartSuccess, EventStop, EventForcedKill, EventStopSuccess}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Event != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, e.Event, want[i])
		}
		if e.SessionID != session {
			t.Errorf("event[%d] session = %q, want %q", i, e.SessionID, session)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("event[%d] has no timestamp", i)
		}
	}
	if events[0].Command != "npm run dev" {
		t.Errorf("start command = %q, want %q", events[0].Command, "npm run dev")
	}
	if events[1].URL != "http://localhost:5173" {
		t.Errorf("start_success url = %q", events[1].URL)
	}
}

func TestEventLogger_LogExit(t *testing.T) {
	tests := []struct {
		name      string
		status    ExitStatus
		wantEvent string
		wantCode  *int
	}{
		{"clean exit", ExitStatus{Code: 0}, EventExit, intPtr(0)},
		{"crash", ExitStatus{Code: 1}, EventCrash, intPtr(1)},
		{"signal death", ExitStatus{Code: -1, Signal: "killed"}, EventExit, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "lifecycle.jsonl")
			if err := NewEventLogger(logPath).LogExit("s", 7, tt.status); err != nil {
				t.Fatalf("LogExit() error = %v", err)
			}

			events := readEvents(t, logPath)
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			e := events[0]
			if e.Event != tt.wantEvent {
				t.Errorf("Event = %q, want %q", e.Event, tt.wantEvent)
			}
			switch {
			case tt.wantCode == nil && e.ExitCode != nil:
				t.Errorf("ExitCode = %d, want none", *e.ExitCode)
			case tt.wantCode != nil && (e.ExitCode == nil || *e.ExitCode != *tt.wantCode):
				t.Errorf("ExitCode = %v, want %d", e.ExitCode, *tt.wantCode)
			}
		})
	}
}

func TestEventLogger_Failures(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "lifecycle.jsonl")
	l := NewEventLogger(logPath)

	l.LogStartFailure("s", 0, errors.New("failed to start process: not found"))
	l.LogStopFailure("s", 9, errors.New("boom"))
	l.LogOrphanReaped(1234, "vite")

	events := readEvents(t, logPath)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Success || events[0].Error == "" {
		t.Errorf("start_failure = %+v, want unsuccessful with error", events[0])
	}
	if events[1].Event != EventStopFailure || events[1].Error != "boom" {
		t.Errorf("stop_failure = %+v", events[1])
	}
	if events[2].Event != EventOrphanReaped || events[2].PID != 1234 {
		t.Errorf("orphan_reaped = %+v", events[2])
	}
}

func TestEventLogger_Disabled(t *testing.T) {
	var nilLogger *EventLogger
	if err := nilLogger.LogStart("s", "npm", nil); err != nil {
		t.Errorf("nil logger error = %v", err)
	}
	if err := NewEventLogger("").LogStop("s", 1); err != nil {
		t.Errorf("empty path error = %v", err)
	}
}

func intPtr(i int) *int { return &i }
