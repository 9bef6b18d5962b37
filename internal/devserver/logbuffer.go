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
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultLogCapacity is the number of entries kept when no capacity is given.
const DefaultLogCapacity = 1000

// LogLevel is the severity assigned to a captured line.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ParseLogLevel parses a level name. The empty string is accepted and
// means no level.
func ParseLogLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

// Stream identifies where an entry came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"

	// StreamSystem marks entries generated by devctl itself.
	StreamSystem Stream = "system"
)

// LogEntry is one captured line. Entries are immutable once pushed.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Stream    Stream    `json:"stream"`
}

// LogBuffer is a fixed-capacity ring of log entries. When full, each push
// evicts the oldest entry.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	head    int
	size    int
}

// NewLogBuffer creates a buffer holding at most capacity entries.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{entries: make([]LogEntry, capacity)}
}

// Push appends entry, evicting the oldest one if the buffer is full.
func (b *LogBuffer) Push(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.entries)
	if b.size < capacity {
		b.entries[(b.head+b.size)%capacity] = entry
		b.size++
		return
	}
	b.entries[b.head] = entry
	b.head = (b.head + 1) % capacity
}

// Entries returns a snapshot ordered oldest to newest. A non-empty level
// keeps only entries of exactly that level, and a positive limit keeps only
// the most recent limit entries after filtering.
func (b *LogBuffer) Entries(level LogLevel, limit int) []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	want := b.size
	if limit > 0 && limit < want {
		want = limit
	}

	// Walk newest to oldest so a limit stops the scan early and the
	// result is allocated at its final size.
	out := make([]LogEntry, 0, want)
	capacity := len(b.entries)
	for i := b.size - 1; i >= 0 && len(out) < want; i-- {
		e := b.entries[(b.head+i)%capacity]
		if level != "" && e.Level != level {
			continue
		}
		out = append(out, e)
	}
	slices.Reverse(out)
	return out
}

// Len returns the number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *LogBuffer) Cap() int {
	return len(b.entries)
}

// Clear drops every entry.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.entries)
	b.head = 0
	b.size = 0
}
