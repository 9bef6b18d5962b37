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
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternMatcher handles include and exclude glob matching for changes.
// It uses doublestar for extended glob pattern support including ** for
// recursive matching. Patterns are matched against the slash-separated path
// relative to the watched root, then against the base name.
type PatternMatcher struct {
	includePatterns []string
	excludePatterns []string
}

// NewPatternMatcher creates a matcher. An empty include list matches
// everything; excludes are applied after includes.
func NewPatternMatcher(includePatterns, excludePatterns []string) (*PatternMatcher, error) {
	for _, pattern := range includePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}
	for _, pattern := range excludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	return &PatternMatcher{
		includePatterns: includePatterns,
		excludePatterns: excludePatterns,
	}, nil
}

// Match reports whether rel is included and not excluded.
func (pm *PatternMatcher) Match(rel string) bool {
	included := len(pm.includePatterns) == 0
	for _, pattern := range pm.includePatterns {
		if matchPattern(pattern, rel) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range pm.excludePatterns {
		if matchPattern(pattern, rel) {
			return false
		}
	}

	return true
}

func matchPattern(pattern, rel string) bool {
	if matched, _ := doublestar.Match(pattern, rel); matched {
		return true
	}
	matched, _ := doublestar.Match(pattern, path.Base(rel))
	return matched
}

// DefaultExcludePatterns returns common editor temporary files and system
// files that should never restart the dev server.
func DefaultExcludePatterns() []string {
	return []string{
		// Vim
		"*.swp",
		"*.swo",
		"*.swn",
		".*.sw?",
		// Emacs
		"*~",
		"#*#",
		".#*",
		// JetBrains safe-write
		"*___jb_tmp___",
		"*___jb_old___",
		// System files
		".DS_Store",
		"Thumbs.db",
		"*.tmp",
		"*.temp",
		"**/.idea/**",
		"**/.vscode/**",
	}
}
