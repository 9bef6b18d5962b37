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

package shared

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/devctl/internal/devserver"
)

func entry(level devserver.LogLevel, stream devserver.Stream, msg string) devserver.LogEntry {
	return devserver.LogEntry{
		Timestamp: time.Date(2025, 1, 2, 13, 4, 5, 678_000_000, time.UTC),
		Level:     level,
		Message:   msg,
		Stream:    stream,
	}
}

func TestFormatEntry_Plain(t *testing.T) {
	got := FormatEntry(entry(devserver.LevelWarn, devserver.StreamStdout, "deprecated option"), false)
	assert.Equal(t, "13:04:05.678 WARN  stdout deprecated option", got)

	got = FormatEntry(entry(devserver.LevelError, devserver.StreamSystem, "Dev server exited with code 1"), false)
	assert.Equal(t, "13:04:05.678 ERROR system Dev server exited with code 1", got)
}

func TestLogPrinter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPrinter(&buf, devserver.LevelWarn)

	p.Print(entry(devserver.LevelDebug, devserver.StreamStdout, "debug line"))
	p.Print(entry(devserver.LevelInfo, devserver.StreamStdout, "info line"))
	p.Print(entry(devserver.LevelWarn, devserver.StreamStdout, "warn line"))
	p.Print(entry(devserver.LevelError, devserver.StreamStderr, "error line"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "warn line")
	assert.Contains(t, lines[1], "error line")
}

func TestLogPrinter_NoFilter(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPrinter(&buf, "")
	p.Print(entry(devserver.LevelDebug, devserver.StreamStdout, "debug line"))
	assert.Contains(t, buf.String(), "debug line")
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast(devserver.LevelDebug, ""))
	assert.True(t, AtLeast(devserver.LevelError, devserver.LevelInfo))
	assert.True(t, AtLeast(devserver.LevelInfo, devserver.LevelInfo))
	assert.False(t, AtLeast(devserver.LevelInfo, devserver.LevelError))
}

func TestLevelFlag(t *testing.T) {
	var f LevelFlag
	assert.Equal(t, "level", f.Type())

	require.NoError(t, f.Set("WARNING"))
	assert.Equal(t, devserver.LevelWarn, f.Level)
	assert.Equal(t, "warn", f.String())

	assert.Error(t, f.Set("loud"))
	assert.Equal(t, devserver.LevelWarn, f.Level, "invalid value leaves the flag unchanged")
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "12s", FormatElapsed(12*time.Second))
	assert.Equal(t, "2m", FormatElapsed(2*time.Minute))
	assert.Equal(t, "1m 23s", FormatElapsed(83*time.Second))
}

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerTo(&buf)
	s.Start("Waiting for dev server")
	s.Start("ignored while active")
	s.Pause()
	s.Stop()
	assert.Equal(t, "Waiting for dev server\n", buf.String())
	assert.Equal(t, time.Duration(0), s.Stop())
}
