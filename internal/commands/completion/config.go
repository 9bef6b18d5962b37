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

package completion

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
)

// LoadConfigForCompletion loads the devctl configuration for completion
// contexts. Callers should treat any error as "no suggestions".
func LoadConfigForCompletion() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if p := shared.GetConfigPath(); p != "" {
		return config.Load(p, config.WorkDirFallback(wd))
	}
	return config.LoadDefault(config.WorkDirFallback(wd))
}

// SafeCompletionWrapper wraps a completion function with panic recovery.
// If the function panics, it returns an empty completion list.
func SafeCompletionWrapper(fn func() ([]string, cobra.ShellCompDirective)) (results []string, directive cobra.ShellCompDirective) {
	// Set defaults for panic recovery
	results = []string{}
	directive = cobra.ShellCompDirectiveNoFileComp

	defer func() {
		if r := recover(); r != nil {
			results = []string{}
			directive = cobra.ShellCompDirectiveNoFileComp
		}
	}()

	results, directive = fn()
	if results == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return results, directive
}
