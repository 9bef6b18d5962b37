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

// Package probe implements the readiness check command.
package probe

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/completion"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
	"github.com/tombee/devctl/internal/devserver"
	"github.com/tombee/devctl/internal/lifecycle"
	"github.com/tombee/devctl/internal/log"
)

// Result is the --json output of probe.
type Result struct {
	shared.JSONResponse
	URL       string             `json:"url"`
	Ready     bool               `json:"ready"`
	ElapsedMs int64              `json:"elapsed_ms"`
	Errors    []shared.JSONError `json:"errors,omitempty"`
}

// NewCommand creates the probe command
func NewCommand() *cobra.Command {
	var (
		timeout  time.Duration
		wait     time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe [url]",
		Short: "Check whether a dev server is ready",
		Annotations: map[string]string{
			"group": "dev server",
		},
		Long: `Probe sends a HEAD request to url and reports whether it answered with a
2xx or 304 status.

Without url, dev_server.default_url from the config is probed.
With --wait the probe is repeated every --interval until it succeeds or
--wait elapses.

Exit codes:
  0  ready
  1  not ready`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completion.CompleteURLs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveURL(args)
			if err != nil {
				return err
			}
			return runProbe(cmd, target, timeout, wait, interval)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", devserver.DefaultProbeTimeout, "Timeout of a single probe")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep probing for up to this long (0 probes once)")
	cmd.Flags().DurationVar(&interval, "interval", devserver.DefaultPollInterval, "Delay between probes with --wait")

	return cmd
}

// resolveURL picks the probe target: the argument, else the configured
// default URL, else the built-in default.
func resolveURL(args []string) (string, error) {
	target := ""
	if len(args) == 1 {
		target = args[0]
	} else if cfg, err := loadConfig(); err == nil {
		target = cfg.DevServer.DefaultURL
	} else {
		target = devserver.DefaultURL
	}

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", shared.NewConfigError(fmt.Sprintf("invalid URL %q: must be an absolute http(s) URL", target), err)
	}
	return target, nil
}

func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if p := shared.GetConfigPath(); p != "" {
		return config.Load(p, config.WorkDirFallback(wd))
	}
	return config.LoadDefault(config.WorkDirFallback(wd))
}

func runProbe(cmd *cobra.Command, target string, timeout, wait, interval time.Duration) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := log.FromEnv()
	logCfg.Output = cmd.ErrOrStderr()
	if shared.GetVerbose() {
		logCfg.Level = "debug"
	}
	logger := log.New(logCfg)
	prober := lifecycle.NewReadinessProber().
		WithLogger(logger).
		WithProbeTimeout(timeout)

	started := time.Now()
	var ready bool
	if wait > 0 {
		ready = prober.WaitUntilReady(ctx, func() string { return target }, wait, interval,
			func() bool { return true })
	} else {
		ready = prober.Probe(ctx, target, timeout)
	}
	elapsed := time.Since(started)

	if shared.GetJSON() {
		res := Result{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "probe", Success: ready},
			URL:          target,
			Ready:        ready,
			ElapsedMs:    elapsed.Milliseconds(),
		}
		if !ready {
			res.Errors = []shared.JSONError{{
				Code:       shared.ErrorCodeNotReady,
				Message:    target + " is not ready",
				Suggestion: "Check that the dev server is running, or retry with --wait",
			}}
		}
		if err := shared.EmitJSONTo(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else if !shared.GetQuiet() || !ready {
		if ready {
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(target+" is ready"))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderError(target+" is not ready"))
		}
	}

	if !ready {
		return shared.NewSilentExit(shared.ExitFailure).WithErrorCode(shared.ErrorCodeNotReady)
	}
	return nil
}
