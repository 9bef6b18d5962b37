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
	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/devserver"
)

// CompleteLogLevels provides completion for --level flag values.
func CompleteLogLevels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		levels := []string{
			string(devserver.LevelDebug) + "\tEverything the server prints",
			string(devserver.LevelInfo) + "\tHide debug lines",
			string(devserver.LevelWarn) + "\tWarnings and errors only",
			string(devserver.LevelError) + "\tErrors only",
		}
		return levels, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteURLs suggests the configured default URL and the built-in one.
func CompleteURLs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		urls := []string{devserver.DefaultURL + "\tBuilt-in default"}
		if cfg, err := LoadConfigForCompletion(); err == nil && cfg.DevServer.DefaultURL != devserver.DefaultURL {
			urls = append([]string{cfg.DevServer.DefaultURL + "\tConfigured default_url"}, urls...)
		}
		return urls, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteDirectories restricts completion to directories.
func CompleteDirectories(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveFilterDirs
}
