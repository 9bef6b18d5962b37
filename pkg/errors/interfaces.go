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

package errors

// UserVisibleError is implemented by errors whose message is safe to show
// as-is on the terminal. The CLI prints Suggestion under the error line and
// copies it into the JSON error envelope.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	// Suggestion is a next step for the user, or "".
	Suggestion() string
}

// ErrorClassifier labels an error for exit codes and metrics. Classify
// returns the first ErrorType found in a chain; devctl uses "spawn",
// "timeout", "precondition", "exit", "teardown" and "config".
// IsRetryable reports whether the same operation may succeed if tried again.
type ErrorClassifier interface {
	error
	ErrorType() string
	IsRetryable() bool
}
