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
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/tombee/devctl/internal/devserver"
	"golang.org/x/term"
)

var levelStyles = map[devserver.LogLevel]lipgloss.Style{
	devserver.LevelDebug: Muted,
	devserver.LevelInfo:  StatusInfo,
	devserver.LevelWarn:  StatusWarn,
	devserver.LevelError: StatusError,
}

var levelRank = map[devserver.LogLevel]int{
	devserver.LevelDebug: 0,
	devserver.LevelInfo:  1,
	devserver.LevelWarn:  2,
	devserver.LevelError: 3,
}

// AtLeast reports whether level is at or above min. An empty min admits
// everything.
func AtLeast(level, min devserver.LogLevel) bool {
	if min == "" {
		return true
	}
	return levelRank[level] >= levelRank[min]
}

// LogPrinter streams captured dev server entries to a terminal. It is safe
// to use as a devserver.Options.Sink.
type LogPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	min     devserver.LogLevel
	color   bool
	spinner *Spinner
}

// NewLogPrinter prints entries at or above min to w. Colors are used when
// w is a terminal and NO_COLOR is unset.
func NewLogPrinter(w io.Writer, min devserver.LogLevel) *LogPrinter {
	color := false
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &LogPrinter{out: w, min: min, color: color}
}

// WithSpinner clears s before each line so output and animation don't
// interleave.
func (p *LogPrinter) WithSpinner(s *Spinner) *LogPrinter {
	p.spinner = s
	return p
}

// Print writes one entry if it passes the level filter.
func (p *LogPrinter) Print(e devserver.LogEntry) {
	if !AtLeast(e.Level, p.min) {
		return
	}
	line := FormatEntry(e, p.color)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.Pause()
	}
	fmt.Fprintln(p.out, line)
}

// FormatEntry renders an entry as "15:04:05.000 LEVEL stream  message".
func FormatEntry(e devserver.LogEntry, color bool) string {
	ts := e.Timestamp.Format("15:04:05.000")
	level := fmt.Sprintf("%-5s", strings.ToUpper(string(e.Level)))
	stream := fmt.Sprintf("%-6s", string(e.Stream))
	msg := e.Message

	if color {
		ts = Muted.Render(ts)
		if style, ok := levelStyles[e.Level]; ok {
			level = style.Render(level)
		}
		stream = Muted.Render(stream)
		if e.Stream == devserver.StreamSystem {
			msg = Bold.Render(msg)
		}
	}

	return ts + " " + level + " " + stream + " " + msg
}
