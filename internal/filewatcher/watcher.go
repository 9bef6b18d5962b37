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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/tombee/devctl/internal/log"
)

// Watcher wraps fsnotify.Watcher for a directory tree. New directories are
// registered as they appear.
type Watcher struct {
	root      string
	maxDepth  int
	watcher   *fsnotify.Watcher
	eventChan chan *Change
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewWatcher watches root and its subdirectories up to maxDepth levels.
// A maxDepth of zero uses DefaultMaxDepth.
func NewWatcher(root string, maxDepth int, logger *slog.Logger) (*Watcher, error) {
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = log.Discard()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:      root,
		maxDepth:  maxDepth,
		watcher:   fsw,
		eventChan: make(chan *Change, 100),
		logger:    logger.With(slog.String("path", root)),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	dirs, err := WalkDirectory(root, maxDepth)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch path: %w", err)
	}
	for _, dir := range dirs[1:] {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to add subdirectory to watcher", "dir", dir, log.Error(err))
		}
	}

	return w, nil
}

// Start begins delivering events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.eventLoop(ctx)
	w.logger.Debug("file watcher started")
}

// Stop stops the watcher and releases resources. It is safe to call once.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

// Events returns the change channel. It is closed when the loop exits.
func (w *Watcher) Events() <-chan *Change {
	return w.eventChan
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("file watcher event channel closed")
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("file watcher error channel closed")
				return
			}
			recordError("fsnotify")
			w.logger.Error("file watcher error", log.Error(err))
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreated
	case op.Has(fsnotify.Write):
		return OpModified
	case op.Has(fsnotify.Remove):
		return OpDeleted
	case op.Has(fsnotify.Rename):
		return OpRenamed
	default:
		return ""
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	op := opName(event.Op)
	if op == "" {
		// Chmod only
		return
	}

	var isDir bool
	if op == OpCreated || op == OpModified {
		if info, err := os.Lstat(event.Name); err == nil {
			isDir = info.IsDir()
		}
	}

	if isDir && op == OpCreated {
		w.addTree(event.Name)
	}

	change := NewChange(w.root, event.Name, op, isDir)
	if strings.HasPrefix(change.Rel, "../") {
		return
	}
	recordEvent(op)

	select {
	case w.eventChan <- change:
	default:
		recordError("channel_full")
		w.logger.Warn("event channel full, dropping event", "op", op, "file", change.Rel)
	}
}

// addTree registers a newly created directory and its children, honouring
// SkipDir and the depth limit.
func (w *Watcher) addTree(dir string) {
	if SkipDir(filepath.Base(dir)) {
		return
	}
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return
	}
	depth := len(strings.Split(rel, string(filepath.Separator)))
	if depth > w.maxDepth {
		return
	}

	dirs, err := WalkDirectory(dir, w.maxDepth-depth)
	if err != nil {
		w.logger.Debug("failed to walk new directory", "dir", dir, log.Error(err))
	}
	for _, d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			w.logger.Debug("failed to watch new directory", "dir", d, log.Error(err))
		}
	}
}
