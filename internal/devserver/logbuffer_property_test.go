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
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allLevels = []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}

// TestProperty_LogBufferKeepsMostRecent checks that after any number of
// pushes the buffer holds exactly the newest min(n, capacity) entries in
// arrival order.
func TestProperty_LogBufferKeepsMostRecent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("ring keeps newest entries in order", prop.ForAll(
		func(capacity, n int) bool {
			b := NewLogBuffer(capacity)
			for i := 0; i < n; i++ {
				b.Push(LogEntry{Level: LevelInfo, Message: strconv.Itoa(i)})
			}

			got := b.Entries("", 0)
			want := min(n, capacity)
			if len(got) != want || b.Len() != want {
				return false
			}
			for i, e := range got {
				if e.Message != strconv.Itoa(n-want+i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}

// TestProperty_LogBufferFilterAndLimit checks that level filtering keeps
// relative order and that limit returns the most recent matches.
func TestProperty_LogBufferFilterAndLimit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("filter then limit matches a reference model", prop.ForAll(
		func(levels []int, filter int, limit int) bool {
			b := NewLogBuffer(len(levels) + 1)
			var matching []string
			for i, l := range levels {
				level := allLevels[l]
				msg := strconv.Itoa(i)
				b.Push(LogEntry{Level: level, Message: msg})
				if level == allLevels[filter] {
					matching = append(matching, msg)
				}
			}
			if limit > 0 && len(matching) > limit {
				matching = matching[len(matching)-limit:]
			}

			got := b.Entries(allLevels[filter], limit)
			if len(got) != len(matching) {
				return false
			}
			for i, e := range got {
				if e.Level != allLevels[filter] || e.Message != matching[i] {
					return false
				}
			}
			return limit <= 0 || len(got) <= limit
		},
		gen.SliceOf(gen.IntRange(0, len(allLevels)-1)),
		gen.IntRange(0, len(allLevels)-1),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
