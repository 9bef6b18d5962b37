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
	"sync"
	"time"

	"golang.org/x/term"
)

// spinnerFrames defines the animation frames for the spinner
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner displays an animated spinner with elapsed time while waiting for
// the dev server. On a non-TTY it prints the message once.
type Spinner struct {
	mu        sync.Mutex
	out       io.Writer
	message   string
	startTime time.Time
	active    bool
	done      chan struct{}
	frameIdx  int
	isTTY     bool
}

// NewSpinnerTo creates a spinner writing to w. Animation is enabled only
// when w is a terminal.
func NewSpinnerTo(w io.Writer) *Spinner {
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Spinner{out: w, isTTY: isTTY}
}

// Start begins the spinner animation with the given message.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}

	s.message = message
	s.startTime = time.Now()
	s.active = true
	s.done = make(chan struct{})
	s.frameIdx = 0

	if !s.isTTY {
		fmt.Fprintf(s.out, "%s\n", message)
		return
	}

	s.render()
	go s.animate()
}

// Pause clears the spinner line so other output can be written. The next
// tick redraws it.
func (s *Spinner) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.isTTY {
		fmt.Fprint(s.out, "\r\033[K")
	}
}

// Stop stops the spinner and clears the line.
// Returns the elapsed duration since Start was called.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return 0
	}

	elapsed := time.Since(s.startTime)
	s.active = false
	close(s.done)

	if s.isTTY {
		fmt.Fprint(s.out, "\r\033[K")
	}

	return elapsed
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.active {
				s.frameIdx = (s.frameIdx + 1) % len(spinnerFrames)
				s.render()
			}
			s.mu.Unlock()
		}
	}
}

// render draws the current spinner state (must be called with mu held)
func (s *Spinner) render() {
	frame := spinnerFrames[s.frameIdx]
	if !ColorEnabled() {
		frame = "..."
	}

	fmt.Fprintf(s.out, "\r\033[K%s %s %s",
		s.message,
		Muted.Render(frame),
		Muted.Render("("+FormatElapsed(time.Since(s.startTime))+")"))
}

// FormatElapsed formats a duration for display (e.g., "12s", "1m 23s")
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
