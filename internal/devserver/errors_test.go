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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tombee/devctl/internal/lifecycle"
	pkgerrors "github.com/tombee/devctl/pkg/errors"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"precondition", &PreconditionError{State: StateRunning}, "dev server is already running"},
		{"crash", &ExitError{Status: lifecycle.ExitStatus{Code: 3}}, "dev server exited unexpectedly with code 3"},
		{"signal death", &ExitError{Status: lifecycle.ExitStatus{Code: -1, Signal: "killed"}}, "dev server exited unexpectedly (signal killed)"},
		{"before ready", &ExitError{Status: lifecycle.ExitStatus{Code: 1}, BeforeReady: true}, "dev server exited before becoming ready (code 1)"},
		{"teardown", &TeardownError{Cause: errors.New("boom")}, "failed to stop dev server: boom"},
		{"timeout", readinessTimeout(1500 * time.Millisecond), "dev server did not become ready within 1500ms"},
		{"spawn", spawnFailure(&lifecycle.SpawnError{Err: errors.New("not found")}), "failed to start process: not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	assert.Equal(t, "precondition", pkgerrors.Classify(&PreconditionError{State: StateStarting}))
	assert.Equal(t, "timeout", pkgerrors.Classify(readinessTimeout(time.Second)))
	assert.Equal(t, "teardown", pkgerrors.Classify(&TeardownError{Cause: errors.New("x")}))
	assert.Equal(t, "internal", pkgerrors.Classify(ErrStartAborted))

	assert.Equal(t, "Wait for the current stop to finish, then start again",
		pkgerrors.Suggestion(&PreconditionError{State: StateStopping}))
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&PreconditionError{State: StateRunning}, "rejected"},
		{spawnFailure(&lifecycle.SpawnError{Err: errors.New("x")}), "spawn_error"},
		{readinessTimeout(time.Second), "timeout"},
		{&ExitError{BeforeReady: true}, "exited"},
		{fmt.Errorf("%w: %w", ErrStartCancelled, errors.New("ctx")), "cancelled"},
		{ErrStartAborted, "aborted"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resultLabel(tt.err), "error %v", tt.err)
	}
}
