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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxDepth bounds recursive directory registration.
const DefaultMaxDepth = 10

// skippedDirs are never descended into. Dependency and VCS trees are large
// and their churn should not restart anything.
var skippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".cache":       true,
	"target":       true,
	"dist":         true,
}

// SkipDir reports whether a directory name is excluded from watching.
func SkipDir(name string) bool {
	return skippedDirs[name]
}

// NormalizePath expands ~, converts to an absolute path and resolves
// symlinks. The root must exist and be a directory.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}

	return resolved, nil
}

// WalkDirectory returns root and every directory below it up to maxDepth
// levels, skipping the directories SkipDir names.
func WalkDirectory(root string, maxDepth int) ([]string, error) {
	paths := []string{root}

	if maxDepth <= 0 {
		return paths, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip directories we can't access
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if SkipDir(d.Name()) {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if len(strings.Split(rel, string(filepath.Separator))) > maxDepth {
			return filepath.SkipDir
		}

		paths = append(paths, path)
		return nil
	})

	return paths, err
}
