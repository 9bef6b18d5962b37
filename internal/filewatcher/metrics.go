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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fileWatcherEvents tracks raw filesystem events by kind
	fileWatcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_filewatcher_events_total",
			Help: "Total file watcher events by operation",
		},
		[]string{"op"},
	)

	// fileWatcherRestarts tracks restarts triggered by changes
	fileWatcherRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_filewatcher_restarts_total",
			Help: "Total dev server restarts triggered by file changes, by outcome",
		},
		[]string{"result"},
	)

	// fileWatcherErrors tracks watcher errors
	fileWatcherErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devctl_filewatcher_errors_total",
			Help: "Total file watcher errors by type",
		},
		[]string{"error_type"},
	)

	// fileWatcherRateLimited tracks restarts delayed by the rate limiter
	fileWatcherRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devctl_filewatcher_rate_limited_total",
			Help: "Total restarts delayed by the restart rate limit",
		},
	)

	// fileWatcherPatternExcluded tracks events dropped by pattern matching
	fileWatcherPatternExcluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devctl_filewatcher_pattern_excluded_total",
			Help: "Total events that matched no restart pattern",
		},
	)
)

func recordEvent(op string) {
	fileWatcherEvents.WithLabelValues(op).Inc()
}

func recordRestart(result string) {
	fileWatcherRestarts.WithLabelValues(result).Inc()
}

func recordError(errorType string) {
	fileWatcherErrors.WithLabelValues(errorType).Inc()
}

func recordRateLimited() {
	fileWatcherRateLimited.Inc()
}

func recordPatternExcluded() {
	fileWatcherPatternExcluded.Inc()
}
