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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(level LogLevel, msg string) LogEntry {
	return LogEntry{Timestamp: time.Now(), Level: level, Message: msg, Stream: StreamStdout}
}

func messages(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestLogBuffer_Eviction(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Push(entry(LevelInfo, fmt.Sprintf("line %d", i)))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Cap())
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, messages(b.Entries("", 0)))
}

func TestLogBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultLogCapacity, NewLogBuffer(0).Cap())
	assert.Equal(t, DefaultLogCapacity, NewLogBuffer(-5).Cap())
}

func TestLogBuffer_Entries(t *testing.T) {
	b := NewLogBuffer(10)
	b.Push(entry(LevelInfo, "a"))
	b.Push(entry(LevelError, "b"))
	b.Push(entry(LevelWarn, "c"))
	b.Push(entry(LevelError, "d"))
	b.Push(entry(LevelError, "e"))

	tests := []struct {
		name  string
		level LogLevel
		limit int
		want  []string
	}{
		{"all", "", 0, []string{"a", "b", "c", "d", "e"}},
		{"level filter keeps order", LevelError, 0, []string{"b", "d", "e"}},
		{"limit keeps most recent", "", 2, []string{"d", "e"}},
		{"limit applies after filter", LevelError, 2, []string{"d", "e"}},
		{"limit larger than size", LevelWarn, 10, []string{"c"}},
		{"no matches", LevelDebug, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messages(b.Entries(tt.level, tt.limit)))
		})
	}
}

func TestLogBuffer_LimitedSnapshotIsRightSized(t *testing.T) {
	b := NewLogBuffer(100)
	for i := 0; i < 250; i++ {
		level := LevelInfo
		if i%2 == 0 {
			level = LevelError
		}
		b.Push(entry(level, fmt.Sprintf("m%d", i)))
	}

	got := b.Entries("", 3)
	assert.Equal(t, []string{"m247", "m248", "m249"}, messages(got))
	assert.Equal(t, 3, cap(got))

	got = b.Entries(LevelError, 2)
	assert.Equal(t, []string{"m246", "m248"}, messages(got))
	assert.Equal(t, 2, cap(got))
}

func TestLogBuffer_SnapshotIsIndependent(t *testing.T) {
	b := NewLogBuffer(2)
	b.Push(entry(LevelInfo, "first"))

	snapshot := b.Entries("", 0)
	b.Push(entry(LevelInfo, "second"))
	b.Push(entry(LevelInfo, "third"))

	require.Len(t, snapshot, 1)
	assert.Equal(t, "first", snapshot[0].Message)
}

func TestLogBuffer_Clear(t *testing.T) {
	b := NewLogBuffer(2)
	b.Push(entry(LevelInfo, "a"))
	b.Push(entry(LevelInfo, "b"))
	b.Push(entry(LevelInfo, "c"))

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Entries("", 0))

	b.Push(entry(LevelInfo, "d"))
	assert.Equal(t, []string{"d"}, messages(b.Entries("", 0)))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"", "", false},
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{" debug ", LevelDebug, false},
		{"trace", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseLogLevel(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseLogLevel(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
