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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tombee/devctl/internal/commands/shared"
)

// CommandMetadata describes one command in `devctl help --json`.
type CommandMetadata struct {
	Name        string         `json:"name"`
	Short       string         `json:"short"`
	Long        string         `json:"long,omitempty"`
	Usage       string         `json:"usage"`
	Flags       []FlagMetadata `json:"flags,omitempty"`
	Examples    string         `json:"examples,omitempty"`
	Subcommands []string       `json:"subcommands,omitempty"`
	Group       string         `json:"group,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
}

// FlagMetadata describes a single flag.
type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required"`
}

// HelpResponse is the JSON envelope for the help command. Exactly one of
// Commands or Command is set.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Command     *CommandMetadata  `json:"command,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
}

// NewHelpCommand replaces cobra's default help so `--json` works for
// scripts and editor integrations.
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.

Run 'devctl help' to see all available commands.
Run 'devctl help <command>' to see detailed help for a specific command.
Use --json for machine-readable output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := rootCmd
			if len(args) > 0 {
				found, _, err := rootCmd.Find(args)
				if err != nil {
					return fmt.Errorf("command %q not found", args[0])
				}
				target = found
			}

			if !shared.GetJSON() && !jsonOutput {
				return target.Help()
			}
			return shared.EmitJSONTo(cmd.OutOrStdout(), helpResponse(rootCmd, target))
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func helpResponse(rootCmd, target *cobra.Command) HelpResponse {
	resp := HelpResponse{
		JSONResponse: shared.JSONResponse{Version: "1.0", Command: "help", Success: true},
		GlobalFlags:  flagMetadata(rootCmd.PersistentFlags()),
	}

	if target == rootCmd {
		resp.Commands = []CommandMetadata{}
		for _, c := range rootCmd.Commands() {
			if !c.Hidden {
				resp.Commands = append(resp.Commands, commandMetadata(c))
			}
		}
		return resp
	}

	meta := commandMetadata(target)
	resp.Command = &meta
	resp.JSONResponse.Command = "help " + target.Name()
	return resp
}

func commandMetadata(cmd *cobra.Command) CommandMetadata {
	meta := CommandMetadata{
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Examples: cmd.Example,
		Aliases:  cmd.Aliases,
		Group:    cmd.Annotations["group"],
		Flags:    flagMetadata(cmd.Flags()),
	}
	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			meta.Subcommands = append(meta.Subcommands, sub.Name())
		}
	}
	return meta
}

// flagMetadata returns nil for an empty set so the field is omitted.
func flagMetadata(fs *pflag.FlagSet) []FlagMetadata {
	var flags []FlagMetadata
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		flags = append(flags, FlagMetadata{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
			Required:  required,
		})
	})
	return flags
}
