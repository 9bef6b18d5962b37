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

// Error codes for structured JSON output
const (
	// Dev server errors (E100-E199)
	ErrorCodeStartFailed = "E101" // Dev server failed to start
	ErrorCodeNotReady    = "E102" // Readiness probe did not succeed
	ErrorCodeCrashed     = "E103" // Dev server exited unexpectedly

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E202" // Configuration invalid or unreadable

	// Internal errors (E400-E499)
	ErrorCodeInternal = "E402"
)

// errorCode maps an ExitError to a JSON error code
func errorCode(exitErr *ExitError) string {
	if exitErr == nil {
		return ErrorCodeInternal
	}
	if exitErr.ErrorCode != "" {
		return exitErr.ErrorCode
	}

	switch exitErr.Code {
	case ExitConfigError:
		return ErrorCodeInvalidConfig
	case ExitFailure:
		return ErrorCodeStartFailed
	default:
		return ErrorCodeInternal
	}
}
