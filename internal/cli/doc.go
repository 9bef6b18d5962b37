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

/*
Package cli provides the root command for devctl.

The command tree is:

	devctl
	├── run        Start the dev server and stream its output
	├── probe      Check whether a URL answers HTTP
	├── doctor     Check config, command and port before running
	├── config     Show effective configuration or its path
	├── version    Show version
	├── completion Generate shell completion scripts
	└── help       Show help (--json for machine-readable output)

Commands live in internal/commands and are registered from main:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(run.NewCommand())
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

Exit codes:

  - 0: success, or run interrupted with Ctrl-C
  - 1: dev server failed to start or crashed, probe not ready, doctor found issues
  - 2: configuration invalid or unreadable
*/
package cli
