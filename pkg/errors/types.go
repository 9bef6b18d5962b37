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

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid configuration values, malformed options, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "dev_server.work_dir")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config error: %s", e.Reason)
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool { return false }

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "dev server readiness")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Message overrides the default rendering when set
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable implements ErrorClassifier.
func (e *TimeoutError) IsRetryable() bool { return true }
