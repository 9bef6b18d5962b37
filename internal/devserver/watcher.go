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
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultMaxLineLength caps a single captured line, in bytes.
const DefaultMaxLineLength = 64 * 1024

const truncationMarker = "…"

// urlPattern matches the "Local: http://..." banner printed by Vite,
// Next.js, Astro and most other bundlers.
var urlPattern = regexp.MustCompile(`(?i)\blocal:\s*(https?://[^\s'"<>]+)`)

// InferLevel classifies a line by keyword: error/fail, then warn, then
// debug, otherwise info. Matching is case-insensitive.
func InferLevel(message string) LogLevel {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "error"), strings.Contains(lower, "fail"):
		return LevelError
	case strings.Contains(lower, "warn"):
		return LevelWarn
	case strings.Contains(lower, "debug"):
		return LevelDebug
	default:
		return LevelInfo
	}
}

// DetectURL extracts the dev server URL from an announcement line, with
// any trailing slash removed.
func DetectURL(line string) (string, bool) {
	m := urlPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	url := strings.TrimRight(m[1], "/")
	if url == "" {
		return "", false
	}
	return url, true
}

// WatcherOptions configures an OutputWatcher.
type WatcherOptions struct {
	// OnEntry receives every entry, including URL announcements. Required.
	OnEntry func(LogEntry)

	// OnURL is called with each detected URL before its announcement entry.
	OnURL func(string)

	// MaxLineLength defaults to DefaultMaxLineLength.
	MaxLineLength int

	// Now defaults to time.Now.
	Now func() time.Time
}

// OutputWatcher turns raw output chunks into log entries. Lines are split
// per chunk; a line broken across two chunks becomes two entries.
type OutputWatcher struct {
	onEntry       func(LogEntry)
	onURL         func(string)
	maxLineLength int
	now           func() time.Time
}

// NewOutputWatcher creates a watcher.
func NewOutputWatcher(opts WatcherOptions) *OutputWatcher {
	w := &OutputWatcher{
		onEntry:       opts.OnEntry,
		onURL:         opts.OnURL,
		maxLineLength: opts.MaxLineLength,
		now:           opts.Now,
	}
	if w.onEntry == nil {
		w.onEntry = func(LogEntry) {}
	}
	if w.maxLineLength <= 0 {
		w.maxLineLength = DefaultMaxLineLength
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// OnChunk processes one read from stream. Undecodable bytes are replaced
// with U+FFFD and ANSI escape sequences are stripped.
func (w *OutputWatcher) OnChunk(stream Stream, chunk []byte) {
	text, _, err := transform.String(runes.ReplaceIllFormed(), string(chunk))
	if err != nil {
		text = strings.ToValidUTF8(string(chunk), string(utf8.RuneError))
	}
	text = ansi.Strip(text)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		level := LevelError
		if stream != StreamStderr {
			level = InferLevel(line)
		}
		w.onEntry(LogEntry{
			Timestamp: w.now(),
			Level:     level,
			Message:   truncate(line, w.maxLineLength),
			Stream:    stream,
		})

		if url, ok := DetectURL(line); ok {
			if w.onURL != nil {
				w.onURL(url)
			}
			w.onEntry(LogEntry{
				Timestamp: w.now(),
				Level:     LevelInfo,
				Message:   "Dev server URL detected: " + url,
				Stream:    StreamSystem,
			})
		}
	}
}

// Writer returns an io.Writer that feeds stream into the watcher. It
// never returns an error, so the child's pipe is always drained.
func (w *OutputWatcher) Writer(stream Stream) io.Writer {
	return &streamWriter{watcher: w, stream: stream}
}

type streamWriter struct {
	watcher *OutputWatcher
	stream  Stream
}

func (s *streamWriter) Write(p []byte) (int, error) {
	s.watcher.OnChunk(s.stream, p)
	return len(p), nil
}

func truncate(line string, max int) string {
	if len(line) <= max {
		return line
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + truncationMarker
}
