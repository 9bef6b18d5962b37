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

package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for devctl
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devctl",
		Short: "devctl - dev server lifecycle manager",
		Long: `devctl starts a frontend dev server, waits until it answers HTTP,
streams its output and stops the whole process tree when you are done.

Run 'devctl run' in a project directory to start its dev server.
Run 'devctl probe' to check whether a dev server is answering.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	shared.RegisterGlobalFlags(cmd.PersistentFlags())

	return cmd
}

// commandGroups orders the help sections. Keys match the "group"
// annotation set by each command.
var commandGroups = []cobra.Group{
	{ID: "dev server", Title: "Dev Server:"},
	{ID: "diagnostics", Title: "Diagnostics:"},
	{ID: "configuration", Title: "Configuration:"},
	{ID: "info", Title: "Other:"},
}

// ApplyGroups sorts root's direct subcommands into help sections using
// their "group" annotation. Call it after all commands are added.
func ApplyGroups(root *cobra.Command) {
	// help always lands in "info".
	used := map[string]bool{"info": true}
	for _, c := range root.Commands() {
		if id := c.Annotations["group"]; id != "" {
			c.GroupID = id
			used[id] = true
		}
	}
	for _, g := range commandGroups {
		if used[g.ID] {
			root.AddGroup(&cobra.Group{ID: g.ID, Title: g.Title})
			delete(used, g.ID)
		}
	}
	// Unknown annotations still need a group or cobra refuses to run.
	for id := range used {
		root.AddGroup(&cobra.Group{ID: id, Title: id + ":"})
	}
	root.SetHelpCommandGroupID("info")
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
