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
	"errors"
	"fmt"
	"time"

	"github.com/tombee/devctl/internal/lifecycle"
	pkgerrors "github.com/tombee/devctl/pkg/errors"
)

var (
	// ErrStartAborted is returned by Start when Stop or Reset ran while it
	// was still waiting for the process.
	ErrStartAborted = errors.New("start aborted: dev server was stopped")

	// ErrStartCancelled is returned by Start when its context ends during
	// the readiness wait.
	ErrStartCancelled = errors.New("start cancelled")
)

// PreconditionError rejects an operation that is invalid in the current state.
type PreconditionError struct {
	State State
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("dev server is already %s", e.State)
}

// ErrorType implements pkgerrors.ErrorClassifier.
func (e *PreconditionError) ErrorType() string { return "precondition" }

// IsRetryable implements pkgerrors.ErrorClassifier.
func (e *PreconditionError) IsRetryable() bool { return false }

// IsUserVisible implements pkgerrors.UserVisibleError.
func (e *PreconditionError) IsUserVisible() bool { return true }

// UserMessage implements pkgerrors.UserVisibleError.
func (e *PreconditionError) UserMessage() string { return e.Error() }

// Suggestion implements pkgerrors.UserVisibleError.
func (e *PreconditionError) Suggestion() string {
	if e.State == StateStopping {
		return "Wait for the current stop to finish, then start again"
	}
	return "Stop the dev server before starting it again"
}

// ExitError reports a process that exited on its own.
type ExitError struct {
	Status lifecycle.ExitStatus

	// BeforeReady is set when the exit happened during Start.
	BeforeReady bool
}

func (e *ExitError) Error() string {
	if e.BeforeReady {
		return fmt.Sprintf("dev server exited before becoming ready (%s)", e.Status)
	}
	if e.Status.HasCode() {
		return fmt.Sprintf("dev server exited unexpectedly with code %d", e.Status.Code)
	}
	return fmt.Sprintf("dev server exited unexpectedly (%s)", e.Status)
}

// ErrorType implements pkgerrors.ErrorClassifier.
func (e *ExitError) ErrorType() string { return "exit" }

// IsRetryable implements pkgerrors.ErrorClassifier.
func (e *ExitError) IsRetryable() bool { return true }

// TeardownError reports a failure inside the stop sequence.
type TeardownError struct {
	Cause error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("failed to stop dev server: %v", e.Cause)
}

func (e *TeardownError) Unwrap() error {
	return e.Cause
}

// ErrorType implements pkgerrors.ErrorClassifier.
func (e *TeardownError) ErrorType() string { return "teardown" }

// IsRetryable implements pkgerrors.ErrorClassifier.
func (e *TeardownError) IsRetryable() bool { return true }

func spawnFailure(err error) error {
	return pkgerrors.Wrap(err, "failed to start process")
}

func readinessTimeout(timeout time.Duration) error {
	return &pkgerrors.TimeoutError{
		Operation: "dev server readiness",
		Duration:  timeout,
		Message:   fmt.Sprintf("dev server did not become ready within %dms", timeout.Milliseconds()),
	}
}

// resultLabel maps a start failure to its metric label.
func resultLabel(err error) string {
	var (
		pre     *PreconditionError
		exit    *ExitError
		spawn   *lifecycle.SpawnError
		timeout *pkgerrors.TimeoutError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &pre):
		return "rejected"
	case errors.As(err, &spawn):
		return "spawn_error"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &exit):
		return "exited"
	case errors.Is(err, ErrStartCancelled):
		return "cancelled"
	default:
		return "aborted"
	}
}
