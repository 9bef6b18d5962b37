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

// Package devserver manages a single long-running dev server child process.
//
// A Manager owns the state machine (stopped, starting, running, stopping,
// error, crashed), captures the child's output into a bounded LogBuffer,
// detects the URL the server announces, and tears the process group down
// gracefully before escalating to a forced kill.
//
// Start and Stop report failures in their result values rather than as Go
// errors. The underlying error is kept in the result's Err field so callers
// can inspect it with errors.As.
package devserver
