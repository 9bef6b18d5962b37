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

package run

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/completion"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
	"github.com/tombee/devctl/internal/devserver"
)

// flags holds the values of the run command's flags.
type flags struct {
	cwd         string
	url         string
	noWait      bool
	timeout     time.Duration
	metricsAddr string
	restartOn   []string
	level       shared.LevelFlag
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	return newCommand(&flags{})
}

func newCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command args...]",
		Short: "Start the dev server and stream its output",
		Annotations: map[string]string{
			"group": "dev server",
		},
		Long: `Run starts the configured dev server, waits until it answers on its URL
and streams its output until interrupted.

The command comes from dev_server.command in the config file unless one is
given after "--":

  devctl run -- pnpm dev --port 5173

Readiness:
  The URL announced on the server's output is probed first. Until one is
  seen, --url (or dev_server.default_url) is probed.
  --no-wait     Skip the readiness wait entirely
  --timeout     Give up waiting after this long

Restart on change:
  --restart-on "src/**/*.go"   Restart when matching files under --cwd change

Ctrl-C stops the server (SIGTERM, then SIGKILL after the grace period) and
exits 0. A crash exits 1 unless --restart-on is active.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := f.overrides(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(overrides...)
			if err != nil {
				return shared.NewConfigError("failed to load config", err)
			}
			return runSession(cmd, cfg, f.sessionOptions(cmd))
		},
	}

	cmd.Flags().StringVar(&f.cwd, "cwd", "", "Working directory of the dev server (default: current directory)")
	cmd.Flags().StringVar(&f.url, "url", "", "URL to probe until the server announces one")
	cmd.Flags().BoolVar(&f.noWait, "no-wait", false, "Don't wait for the server to become ready")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Readiness timeout (default from config, 60s)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	cmd.Flags().StringSliceVar(&f.restartOn, "restart-on", nil, "Glob relative to --cwd that restarts the server when matching files change")
	cmd.Flags().Var(&f.level, "level", "Minimum level of printed entries (debug, info, warn, error)")

	_ = cmd.RegisterFlagCompletionFunc("level", completion.CompleteLogLevels)
	_ = cmd.RegisterFlagCompletionFunc("url", completion.CompleteURLs)
	_ = cmd.RegisterFlagCompletionFunc("cwd", completion.CompleteDirectories)

	return cmd
}

// overrides converts explicitly set flags into config overrides so they
// take precedence over the config file and environment.
func (f *flags) overrides(cmd *cobra.Command, args []string) ([]config.Override, error) {
	var out []config.Override

	if cmd.Flags().Changed("cwd") {
		dir := f.cwd
		out = append(out, func(c *config.Config) { c.DevServer.WorkDir = dir })
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, shared.NewConfigError("failed to determine working directory", err)
		}
		out = append(out, config.WorkDirFallback(wd))
	}

	if cmd.Flags().Changed("url") {
		u := f.url
		out = append(out, func(c *config.Config) { c.DevServer.DefaultURL = u })
	}
	if cmd.Flags().Changed("timeout") {
		d := config.Duration(f.timeout)
		out = append(out, func(c *config.Config) { c.DevServer.ReadyTimeout = d })
	}
	if cmd.Flags().Changed("metrics-addr") {
		addr := f.metricsAddr
		out = append(out, func(c *config.Config) { c.Metrics.Addr = addr })
	}
	if cmd.Flags().Changed("restart-on") {
		globs := append([]string(nil), f.restartOn...)
		out = append(out, func(c *config.Config) { c.DevServer.RestartOn = globs })
	}

	if cmd.ArgsLenAtDash() >= 0 && len(args) > cmd.ArgsLenAtDash() {
		argv := append([]string(nil), args[cmd.ArgsLenAtDash():]...)
		out = append(out, func(c *config.Config) {
			c.DevServer.Command = argv[0]
			c.DevServer.Args = argv[1:]
		})
	} else if len(args) > 0 {
		return nil, shared.NewConfigError(
			fmt.Sprintf("unexpected arguments %q: put the dev server command after --", args), nil)
	}

	if shared.GetVerbose() {
		out = append(out, func(c *config.Config) { c.Log.Level = "debug" })
	}

	return out, nil
}

func (f *flags) sessionOptions(cmd *cobra.Command) sessionOptions {
	min := f.level.Level
	if !cmd.Flags().Changed("level") && shared.GetQuiet() {
		min = devserver.LevelError
	}
	return sessionOptions{
		WaitForReady: !f.noWait,
		MinLevel:     min,
	}
}

// loadConfig honours --config and falls back to the default location.
func loadConfig(overrides ...config.Override) (*config.Config, error) {
	if p := shared.GetConfigPath(); p != "" {
		return config.Load(p, overrides...)
	}
	return config.LoadDefault(overrides...)
}
