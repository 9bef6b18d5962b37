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

package filewatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerRecorder struct {
	mu      sync.Mutex
	batches [][]*Change
	times   []time.Time
	err     error
}

func (r *triggerRecorder) trigger(_ context.Context, changes []*Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
	r.times = append(r.times, time.Now())
	return r.err
}

func (r *triggerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *triggerRecorder) batch(i int) []*Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[i]
}

func waitForTriggers(t *testing.T, r *triggerRecorder, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d triggers, got %d", n, r.count())
}

func startService(t *testing.T, root string, rec *triggerRecorder, include ...string) *Service {
	t.Helper()
	svc, err := NewService(Options{
		Root:        root,
		Include:     include,
		Debounce:    50 * time.Millisecond,
		MinInterval: 300 * time.Millisecond,
		Trigger:     rec.trigger,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func TestNewService_Validation(t *testing.T) {
	rec := &triggerRecorder{}

	_, err := NewService(Options{Root: t.TempDir(), Trigger: rec.trigger})
	assert.ErrorContains(t, err, "include pattern")

	_, err = NewService(Options{Root: t.TempDir(), Include: []string{"*.json"}})
	assert.ErrorContains(t, err, "trigger is required")

	_, err = NewService(Options{Root: filepath.Join(t.TempDir(), "missing"), Include: []string{"*.json"}, Trigger: rec.trigger})
	assert.ErrorContains(t, err, "invalid root")

	svc, err := NewService(Options{Root: t.TempDir(), Include: []string{"*.json"}, Trigger: rec.trigger})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, svc.opts.Debounce)
	assert.Equal(t, DefaultMinInterval, svc.opts.MinInterval)
}

func TestService_TriggersOnMatchingChange(t *testing.T) {
	root := t.TempDir()
	rec := &triggerRecorder{}
	startService(t, root, rec, "*.json")

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.json"), []byte("{}"), 0644))

	waitForTriggers(t, rec, 1, 2*time.Second)
	batch := rec.batch(0)
	require.NotEmpty(t, batch)
	for _, c := range batch {
		assert.Equal(t, "app.json", c.Rel, "non-matching files never reach the trigger")
	}
}

func TestService_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	rec := &triggerRecorder{}
	startService(t, root, rec, "config/**/*.yaml")

	dir := filepath.Join(root, "config", "env")
	require.NoError(t, os.MkdirAll(dir, 0755))
	// Give the watcher a moment to register the new directories.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dev.yaml"), []byte("a: 1"), 0644))

	waitForTriggers(t, rec, 1, 2*time.Second)
	assert.Equal(t, "config/env/dev.yaml", rec.batch(0)[0].Rel)
}

func TestService_RateLimitsAndMerges(t *testing.T) {
	root := t.TempDir()
	rec := &triggerRecorder{}
	startService(t, root, rec, "*.json")

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte("1"), 0644))
	waitForTriggers(t, rec, 1, 2*time.Second)

	// Two batches separated by more than the debounce window but inside
	// the rate limit are merged into a single delayed trigger.
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.json"), []byte("2"), 0644))
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.json"), []byte("3"), 0644))

	waitForTriggers(t, rec, 2, 2*time.Second)
	time.Sleep(400 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.batches, 2, "changes arriving during the rate limit must not be dropped or duplicated")
	assert.GreaterOrEqual(t, rec.times[1].Sub(rec.times[0]), 250*time.Millisecond)

	rels := map[string]bool{}
	for _, c := range rec.batches[1] {
		rels[c.Rel] = true
	}
	assert.True(t, rels["b.json"])
	assert.True(t, rels["c.json"])
}

func TestService_TriggerErrorKeepsWatching(t *testing.T) {
	root := t.TempDir()
	rec := &triggerRecorder{err: errors.New("restart failed")}
	startService(t, root, rec, "*.json")

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte("1"), 0644))
	waitForTriggers(t, rec, 1, 2*time.Second)

	time.Sleep(350 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.json"), []byte("2"), 0644))
	waitForTriggers(t, rec, 2, 2*time.Second)
}

func TestService_StopIsIdempotent(t *testing.T) {
	rec := &triggerRecorder{}
	svc, err := NewService(Options{Root: t.TempDir(), Include: []string{"*"}, Trigger: rec.trigger})
	require.NoError(t, err)

	assert.NoError(t, svc.Stop(), "stop before start")
	require.NoError(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Stop())
	assert.NoError(t, svc.Stop())
}

func TestTakeUnique(t *testing.T) {
	in := []*Change{
		change("/srv/a", OpCreated),
		change("/srv/b", OpCreated),
		change("/srv/a", OpDeleted),
	}
	out := takeUnique(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Rel)
	assert.Equal(t, OpDeleted, out[0].Op)
	assert.Equal(t, "b", out[1].Rel)
}
