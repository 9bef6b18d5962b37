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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// devServerState is 1 for the current state and 0 for all others
	devServerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devctl_devserver_state",
			Help: "Current dev server lifecycle state",
		},
		[]string{"state"},
	)

	// devServerStarts tracks start attempts by outcome
	devServerStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_devserver_starts_total",
			Help: "Total dev server start attempts by result",
		},
		[]string{"result"},
	)

	// devServerStops tracks completed stop sequences by how they ended
	devServerStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_devserver_stops_total",
			Help: "Total dev server stops by mode (noop, graceful, forced, failed)",
		},
		[]string{"mode"},
	)

	// devServerExits tracks exits the manager did not initiate
	devServerExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_devserver_exits_total",
			Help: "Total unrequested dev server exits by kind (clean, crash, signal)",
		},
		[]string{"kind"},
	)

	// devServerLogEntries tracks captured log entries
	devServerLogEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_devserver_log_entries_total",
			Help: "Total captured dev server log entries by level",
		},
		[]string{"level"},
	)

	// devServerReadyWait tracks how long Start waited for readiness
	devServerReadyWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "devctl_devserver_readiness_wait_seconds",
			Help:    "Time spent waiting for the dev server to become ready",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// recordState marks state as current
func recordState(state State) {
	for _, s := range AllStates {
		v := 0.0
		if s == state {
			v = 1
		}
		devServerState.WithLabelValues(string(s)).Set(v)
	}
}

// recordStart increments the start counter
func recordStart(result string) {
	devServerStarts.WithLabelValues(result).Inc()
}

// recordStop increments the stop counter
func recordStop(mode string) {
	devServerStops.WithLabelValues(mode).Inc()
}

// recordExit increments the exit counter
func recordExit(kind string) {
	devServerExits.WithLabelValues(kind).Inc()
}

// recordLogEntry increments the log entry counter
func recordLogEntry(level LogLevel) {
	devServerLogEntries.WithLabelValues(string(level)).Inc()
}

// recordReadyWait observes a readiness wait
func recordReadyWait(seconds float64) {
	devServerReadyWait.Observe(seconds)
}
