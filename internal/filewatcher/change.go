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
	"path/filepath"
)

// Change kinds reported by the watcher.
const (
	OpCreated  = "created"
	OpModified = "modified"
	OpDeleted  = "deleted"
	OpRenamed  = "renamed"
)

// Change describes one filesystem event below the watched root.
type Change struct {
	// Path is the absolute path that changed.
	Path string `json:"path"`

	// Rel is Path relative to the watched root, slash separated.
	Rel string `json:"rel"`

	// Op is one of created, modified, deleted, renamed.
	Op string `json:"op"`

	IsDir bool `json:"is_dir"`
}

// NewChange builds a Change for path relative to root.
func NewChange(root, path, op string, isDir bool) *Change {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return &Change{
		Path:  path,
		Rel:   filepath.ToSlash(rel),
		Op:    op,
		IsDir: isDir,
	}
}
