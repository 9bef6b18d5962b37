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

package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long: `View the effective devctl configuration.

Subcommands:
  show - Display the effective configuration
  path - Show config file location`,
		Annotations: map[string]string{
			"group": "configuration",
		},
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration devctl would run with: the config file,
environment overrides and built-in defaults merged together.

An unset work_dir falls back to the current directory.
Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

// resolvePath returns the --config value or the default location.
func resolvePath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return p, nil
}

// loadEffective loads configuration the same way the run command does.
func loadEffective() (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	fallback := config.WorkDirFallback(cwd)

	if p := shared.GetConfigPath(); p != "" {
		cfg, err := config.Load(p, fallback)
		return cfg, p, err
	}

	cfg, err := config.LoadDefault(fallback)
	if err != nil {
		return nil, "", err
	}
	source := "(defaults)"
	if p, perr := config.ConfigPath(); perr == nil {
		if _, serr := os.Stat(p); serr == nil {
			source = p
		}
	}
	return cfg, source, nil
}

// runConfigShow displays the effective configuration
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadEffective()
	if err != nil {
		return shared.NewConfigError("failed to load config", err)
	}

	if shared.GetJSON() {
		return outputConfigJSON(cmd.OutOrStdout(), source, cfg)
	}
	return outputConfigYAML(cmd.OutOrStdout(), source, cfg)
}

// runConfigPath displays the config file path
func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolvePath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
	return nil
}

// outputConfigJSON re-reads the YAML rendering into a generic map so the
// JSON output keeps the same keys and human readable durations.
func outputConfigJSON(w io.Writer, source string, cfg *config.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return shared.EmitJSONTo(w, struct {
		shared.JSONResponse
		Source string                 `json:"source"`
		Config map[string]interface{} `json:"config"`
	}{
		JSONResponse: shared.JSONResponse{Version: "1.0", Command: "config show", Success: true},
		Source:       source,
		Config:       generic,
	})
}

// outputConfigYAML outputs config in YAML format
func outputConfigYAML(w io.Writer, source string, cfg *config.Config) error {
	fmt.Fprintf(w, "Configuration: %s\n", source)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return encoder.Close()
}
