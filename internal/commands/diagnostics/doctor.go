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

// Package diagnostics implements the doctor command.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/devctl/internal/commands/shared"
	"github.com/tombee/devctl/internal/config"
	"github.com/tombee/devctl/internal/filewatcher"
	"github.com/tombee/devctl/internal/lifecycle"
)

// Check statuses
const (
	StatusOK   = "ok"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Check is the outcome of one doctor check
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

// DoctorResult contains the overall check results
type DoctorResult struct {
	shared.JSONResponse
	ConfigPath string  `json:"config_path"`
	Checks     []Check `json:"checks"`
	Healthy    bool    `json:"healthy"`
}

// NewDoctorCommand creates the doctor command
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use: "doctor",
		Annotations: map[string]string{
			"group": "diagnostics",
		},
		Short: "Check that the dev server can be started",
		Long: `Check the devctl configuration and environment before running.

This command checks:
  - The config file loads and validates
  - work_dir exists
  - The dev server command can be found
  - Nothing else already answers on default_url
  - No orphaned dev server is recorded in pid_file
  - restart_on globs are valid

Exits 1 when any check fails. Warnings do not fail.`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := diagnose(ctx)

	if shared.GetJSON() {
		if err := shared.EmitJSONTo(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		outputDoctorText(cmd.OutOrStdout(), result)
	}

	if !result.Healthy {
		return shared.NewSilentExit(shared.ExitFailure)
	}
	return nil
}

// diagnose runs every check. Checks after the config check are skipped
// when the config cannot be loaded.
func diagnose(ctx context.Context) DoctorResult {
	result := DoctorResult{
		JSONResponse: shared.JSONResponse{Version: "1.0", Command: "doctor"},
		Healthy:      true,
	}
	add := func(c Check) {
		if c.Status == StatusFail {
			result.Healthy = false
		}
		result.Checks = append(result.Checks, c)
	}

	cfg, path, check := checkConfig()
	result.ConfigPath = path
	add(check)
	if cfg == nil {
		result.Success = result.Healthy
		return result
	}

	add(checkWorkDir(cfg))
	add(checkCommand(cfg))
	add(checkURL(ctx, cfg))
	if cfg.DevServer.PIDFile != "" {
		add(checkPIDFile(cfg))
	}
	if len(cfg.DevServer.RestartOn) > 0 {
		add(checkRestartGlobs(cfg))
	}

	result.Success = result.Healthy
	return result
}

func checkConfig() (*config.Config, string, Check) {
	check := Check{Name: "config"}

	wd, err := os.Getwd()
	if err != nil {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("cannot determine working directory: %v", err)
		return nil, "", check
	}
	fallback := config.WorkDirFallback(wd)

	path := shared.GetConfigPath()
	explicit := path != ""
	if !explicit {
		if path, err = config.ConfigPath(); err != nil {
			check.Status = StatusFail
			check.Detail = fmt.Sprintf("cannot determine config path: %v", err)
			return nil, "", check
		}
	}

	exists := true
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		exists = false
	}

	var cfg *config.Config
	if exists {
		cfg, err = config.Load(path, fallback)
	} else {
		cfg, err = config.Load("", fallback)
	}
	if err != nil {
		check.Status = StatusFail
		check.Detail = err.Error()
		check.Fix = "Fix the reported fields, then run 'devctl config show'"
		return nil, path, check
	}

	check.Status = StatusOK
	if exists {
		check.Detail = "loaded " + path
	} else {
		check.Detail = "no config file, using defaults"
	}
	return cfg, path, check
}

func checkWorkDir(cfg *config.Config) Check {
	check := Check{Name: "work_dir", Detail: cfg.DevServer.WorkDir}
	info, err := os.Stat(cfg.DevServer.WorkDir)
	switch {
	case err != nil:
		check.Status = StatusFail
		check.Detail = err.Error()
		check.Fix = "Set dev_server.work_dir to an existing directory or pass --cwd"
	case !info.IsDir():
		check.Status = StatusFail
		check.Detail = cfg.DevServer.WorkDir + " is not a directory"
		check.Fix = "Set dev_server.work_dir to an existing directory or pass --cwd"
	default:
		check.Status = StatusOK
	}
	return check
}

// checkCommand resolves the command the way exec does: names containing a
// path separator are relative to work_dir, bare names are looked up in PATH.
func checkCommand(cfg *config.Config) Check {
	name := cfg.DevServer.Command
	check := Check{Name: "command"}

	var resolved string
	var err error
	if strings.ContainsRune(name, filepath.Separator) {
		resolved = name
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(cfg.DevServer.WorkDir, resolved)
		}
		var info os.FileInfo
		if info, err = os.Stat(resolved); err == nil && info.Mode()&0o111 == 0 {
			err = fmt.Errorf("%s is not executable", resolved)
		}
	} else {
		resolved, err = exec.LookPath(name)
	}

	if err != nil {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("%s: %v", name, err)
		check.Fix = "Install " + name + " or set dev_server.command"
		return check
	}
	check.Status = StatusOK
	check.Detail = resolved
	return check
}

// checkURL warns when default_url already answers: run would report a
// foreign server as ready.
func checkURL(ctx context.Context, cfg *config.Config) Check {
	url := cfg.DevServer.DefaultURL
	check := Check{Name: "default_url", Status: StatusOK, Detail: url + " is free"}

	prober := lifecycle.NewReadinessProber()
	if prober.Probe(ctx, url, cfg.DevServer.ProbeTimeout.Std()) {
		check.Status = StatusWarn
		check.Detail = url + " already answers"
		check.Fix = "Stop the other server or point default_url at a different port"
	}
	return check
}

func checkPIDFile(cfg *config.Config) Check {
	path := cfg.ManagerOptions().PIDFile
	check := Check{Name: "pid_file", Status: StatusOK}

	pf := lifecycle.NewPIDFileManager(path)
	pid, err := pf.Read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		check.Detail = "no pid file"
	case err != nil:
		check.Status = StatusWarn
		check.Detail = err.Error()
		check.Fix = "Remove " + path
	case pf.Locked():
		check.Status = StatusWarn
		check.Detail = fmt.Sprintf("another devctl session owns pid %d", pid)
		check.Fix = "Stop the other 'devctl run' first"
	case lifecycle.IsProcessRunning(pid) && lifecycle.MatchesCommand(pid, cfg.DevServer.Command):
		check.Status = StatusWarn
		check.Detail = fmt.Sprintf("orphaned dev server pid %d", pid)
		check.Fix = "It will be killed by the next 'devctl run'"
	case lifecycle.IsProcessRunning(pid):
		check.Detail = fmt.Sprintf("stale pid file (pid %d belongs to another program)", pid)
	default:
		check.Detail = fmt.Sprintf("stale pid file (pid %d not running)", pid)
	}
	return check
}

func checkRestartGlobs(cfg *config.Config) Check {
	check := Check{Name: "restart_on", Status: StatusOK, Detail: strings.Join(cfg.DevServer.RestartOn, ", ")}
	if _, err := filewatcher.NewPatternMatcher(cfg.DevServer.RestartOn, nil); err != nil {
		check.Status = StatusFail
		check.Detail = err.Error()
		check.Fix = "Use doublestar globs such as src/**/*.ts"
	}
	return check
}

// outputDoctorText outputs results in human-readable format
func outputDoctorText(w io.Writer, result DoctorResult) {
	fmt.Fprintln(w, "devctl doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	for _, c := range result.Checks {
		line := fmt.Sprintf("%-12s %s", c.Name, c.Detail)
		switch c.Status {
		case StatusOK:
			fmt.Fprintln(w, shared.RenderOK(line))
		case StatusWarn:
			fmt.Fprintln(w, shared.RenderWarn(line))
		default:
			fmt.Fprintln(w, shared.RenderError(line))
		}
		if c.Fix != "" && c.Status != StatusOK {
			fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("fix:"), c.Fix)
		}
	}
	fmt.Fprintln(w)

	if result.Healthy {
		fmt.Fprintln(w, "Overall Status: Ready")
	} else {
		fmt.Fprintln(w, "Overall Status: Issues Found")
	}
}
