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

// State is the lifecycle state of the managed dev server.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"

	// StateCrashed means the process exited with a non-zero code while
	// running. It is terminal until the next Start or Stop.
	StateCrashed State = "crashed"
)

// AllStates lists every state, in declaration order.
var AllStates = []State{StateStopped, StateStarting, StateRunning, StateStopping, StateError, StateCrashed}

func (s State) String() string {
	return string(s)
}

// CanStart reports whether Start is accepted from s.
func (s State) CanStart() bool {
	switch s {
	case StateStopped, StateError, StateCrashed:
		return true
	default:
		return false
	}
}

// Active reports whether a process may be alive in s.
func (s State) Active() bool {
	switch s {
	case StateStarting, StateRunning, StateStopping:
		return true
	default:
		return false
	}
}
