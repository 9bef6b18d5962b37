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

// Package completion provides shell auto-completion for the devctl CLI.
//
// This package includes:
//   - Shell completion script generators (bash, zsh, fish, PowerShell)
//   - Flag value completion for log levels, probe URLs and directories
//
// All completion functions fail silently: an error or panic yields an
// empty list rather than a broken shell prompt.
package completion
