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

package filewatcher

import (
	"sync"
	"time"
)

// Debouncer collects changes until no new change has arrived for the
// configured window, then delivers them together. Repeated changes to the
// same path collapse into the latest one, keeping first-seen order.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	order   []string
	pending map[string]*Change
	onFlush func([]*Change)
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration, onFlush func([]*Change)) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*Change),
		onFlush: onFlush,
	}
}

// Add records a change and restarts the quiet window.
func (d *Debouncer) Add(c *Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if _, seen := d.pending[c.Path]; !seen {
		d.order = append(d.order, c.Path)
	}
	d.pending[c.Path] = c

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.order) == 0 {
		d.mu.Unlock()
		return
	}
	changes := make([]*Change, 0, len(d.order))
	for _, p := range d.order {
		changes = append(changes, d.pending[p])
	}
	d.order = nil
	d.pending = make(map[string]*Change)
	d.timer = nil
	d.mu.Unlock()

	// Call onFlush outside of lock to prevent deadlocks
	if d.onFlush != nil {
		d.onFlush(changes)
	}
}

// Stop cancels the pending flush. Changes not yet delivered are dropped and
// later Adds are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.order = nil
	d.pending = make(map[string]*Change)
}

// Pending returns the number of distinct paths waiting for the window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
