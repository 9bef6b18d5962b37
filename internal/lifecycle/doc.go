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
Package lifecycle provides the operating-system side of running a dev server:
spawning the child, signalling it, probing it for readiness, and recording
what happened.

# Process Control

Children are started in their own process group so that a bundler and any
workers it forks can be stopped together:

	pc := lifecycle.NewProcessController(logger)
	proc, err := pc.Spawn(lifecycle.SpawnOptions{
	    Command: "npm",
	    Args:    []string{"run", "dev"},
	    Dir:     "/path/to/app",
	    Stdout:  stdoutWriter,
	    Stderr:  stderrWriter,
	})

Signals are best effort. Delivery targets the group first, then the single
process, and finally reports SignalIgnored when nothing was reachable:

	outcome := pc.Signal(proc, lifecycle.Graceful)
	if !pc.WaitForExit(proc, 5*time.Second) {
	    pc.Signal(proc, lifecycle.Forceful)
	}

# Readiness

A dev server is ready once a HEAD request returns 2xx or 304:

	prober := lifecycle.NewReadinessProber()
	ok := prober.WaitUntilReady(ctx, urlFn, 60*time.Second, 500*time.Millisecond, stillStarting)

# PID Files

An optional PID file lets a later devctl find and kill a dev server whose
host crashed. The file is created with O_EXCL and held under flock, so an
unlocked file always belongs to a dead host:

	pidFile := lifecycle.NewPIDFileManager("/path/to/devctl.pid")
	if err := pidFile.Create(proc.PID()); err != nil {
	    // Handle error
	}
	defer pidFile.Remove()

# Lifecycle Logging

Lifecycle transitions can be appended to a JSON-lines audit log:

	events := lifecycle.NewEventLogger("/path/to/lifecycle.jsonl")
	events.LogStart(sessionID, "npm", []string{"run", "dev"})
*/
package lifecycle
