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

// Package filewatcher restarts the dev server when watched files change.
package filewatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tombee/devctl/internal/log"
	"golang.org/x/time/rate"
)

// Defaults for Options.
const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultMinInterval = 2 * time.Second
)

// TriggerFunc runs one restart for a batch of changes.
type TriggerFunc func(ctx context.Context, changes []*Change) error

// Options configures a Service.
type Options struct {
	// Root is the directory to watch, normally the dev server work_dir.
	Root string

	// Include lists doublestar globs relative to Root. At least one is
	// required.
	Include []string

	// Exclude is applied after Include. DefaultExcludePatterns are always
	// added.
	Exclude []string

	// Debounce is the quiet window before a batch is delivered.
	Debounce time.Duration

	// MinInterval is the minimum spacing between two triggers. Batches
	// arriving sooner are merged and delivered when the limiter allows.
	MinInterval time.Duration

	// MaxDepth bounds recursive watching. Zero uses DefaultMaxDepth.
	MaxDepth int

	Trigger TriggerFunc
	Logger  *slog.Logger
}

// Service watches a tree and calls Trigger for matching changes.
type Service struct {
	opts      Options
	root      string
	matcher   *PatternMatcher
	limiter   *rate.Limiter
	watcher   *Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	mu      sync.Mutex
	pending []*Change
	kick    chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService validates opts and prepares a Service. Nothing is watched
// until Start.
func NewService(opts Options) (*Service, error) {
	if len(opts.Include) == 0 {
		return nil, fmt.Errorf("at least one include pattern is required")
	}
	if opts.Trigger == nil {
		return nil, fmt.Errorf("trigger is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	root, err := NormalizePath(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}

	exclude := append(DefaultExcludePatterns(), opts.Exclude...)
	pm, err := NewPatternMatcher(opts.Include, exclude)
	if err != nil {
		return nil, err
	}

	return &Service{
		opts:    opts,
		root:    root,
		matcher: pm,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		logger:  log.WithComponent(opts.Logger, "filewatcher"),
		kick:    make(chan struct{}, 1),
	}, nil
}

// Start begins watching. It returns once the tree is registered.
func (s *Service) Start(ctx context.Context) error {
	w, err := NewWatcher(s.root, s.opts.MaxDepth, s.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.watcher = w
	s.debouncer = NewDebouncer(s.opts.Debounce, s.enqueue)

	w.Start(ctx)

	s.wg.Add(2)
	go s.handleEvents()
	go s.triggerLoop(ctx)

	s.logger.Info("watching for changes",
		"root", s.root,
		"patterns", s.opts.Include,
		"debounce", s.opts.Debounce,
		"min_interval", s.opts.MinInterval)
	return nil
}

// Stop stops watching and waits for an in-flight trigger to return.
// Pending changes are dropped.
func (s *Service) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.debouncer.Stop()
	err := s.watcher.Stop()
	s.wg.Wait()
	s.cancel = nil
	return err
}

func (s *Service) handleEvents() {
	defer s.wg.Done()

	for c := range s.watcher.Events() {
		if c.IsDir {
			continue
		}
		if !s.matcher.Match(c.Rel) {
			recordPatternExcluded()
			continue
		}
		s.logger.Debug("change detected", "file", c.Rel, "op", c.Op)
		s.debouncer.Add(c)
	}
}

// enqueue merges a debounced batch into the pending set and wakes the
// trigger loop.
func (s *Service) enqueue(changes []*Change) {
	s.mu.Lock()
	s.pending = append(s.pending, changes...)
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Service) takePending() []*Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	changes := s.pending
	s.pending = nil
	return changes
}

func (s *Service) triggerLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}

		if s.limiter.Tokens() < 1 {
			recordRateLimited()
			s.logger.Debug("restart delayed by rate limit")
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		changes := takeUnique(s.takePending())
		if len(changes) == 0 {
			continue
		}

		s.logger.Info("restarting dev server after file changes",
			"count", len(changes),
			"first", changes[0].Rel)

		if err := s.opts.Trigger(ctx, changes); err != nil {
			recordRestart("failure")
			s.logger.Warn("restart after file change failed", log.Error(err))
			continue
		}
		recordRestart("success")
	}
}

// takeUnique keeps the latest change per path, in first-seen order.
func takeUnique(changes []*Change) []*Change {
	if len(changes) < 2 {
		return changes
	}
	index := make(map[string]int, len(changes))
	out := make([]*Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := index[c.Path]; ok {
			out[i] = c
			continue
		}
		index[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
