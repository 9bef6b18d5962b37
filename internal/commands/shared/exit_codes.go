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
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/devctl/pkg/errors"
)

// Exit codes for devctl commands
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // start failed, server crashed, or probe not ready
	ExitConfigError = 2 // configuration could not be loaded or is invalid
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error

	// ErrorCode overrides the JSON error code derived from Code.
	ErrorCode string
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// WithErrorCode sets the JSON error code.
func (e *ExitError) WithErrorCode(code string) *ExitError {
	e.ErrorCode = code
	return e
}

// NewFailure creates an error for dev server failures
func NewFailure(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitFailure,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for configuration problems
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

// NewSilentExit exits with code and prints nothing. Used when the command
// already reported its outcome.
func NewSilentExit(code int) *ExitError {
	return &ExitError{Code: code}
}

// HandleExitError prints err and exits with the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(reportExitError(os.Stderr, err))
}

// reportExitError writes err to w, as JSON when --json is set, and returns
// the exit code.
func reportExitError(w io.Writer, err error) int {
	code := ExitFailure
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	msg := err.Error()
	if msg == "" {
		return code
	}

	if GetJSON() {
		_ = EmitJSONErrorTo(w, "devctl", []JSONError{{
			Code:       errorCode(exitErr),
			Message:    msg,
			Suggestion: pkgerrors.Suggestion(err),
		}})
		return code
	}

	fmt.Fprintln(w, "Error:", msg)
	if suggestion := pkgerrors.Suggestion(err); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
	return code
}
