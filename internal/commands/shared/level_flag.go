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

package shared

import (
	"github.com/spf13/pflag"
	"github.com/tombee/devctl/internal/devserver"
)

// LevelFlag is a pflag.Value accepting debug, info, warn or error.
type LevelFlag struct {
	Level devserver.LogLevel
}

var _ pflag.Value = (*LevelFlag)(nil)

// String implements pflag.Value.
func (f *LevelFlag) String() string {
	return string(f.Level)
}

// Set implements pflag.Value.
func (f *LevelFlag) Set(s string) error {
	level, err := devserver.ParseLogLevel(s)
	if err != nil {
		return err
	}
	f.Level = level
	return nil
}

// Type implements pflag.Value.
func (f *LevelFlag) Type() string {
	return "level"
}
