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

package diagnostics

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/devctl/internal/commands/shared"
)

// writeConfig writes a config file into a fresh directory, points --config
// at it and isolates the environment.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"DEVCTL_WORKDIR", "DEVCTL_DEFAULT_URL", "DEVCTL_PID_FILE", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	body = strings.ReplaceAll(body, "$DIR", dir)
	path := filepath.Join(dir, "devctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
	return dir
}

func findCheck(t *testing.T, result DoctorResult, name string) Check {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found in %+v", name, result.Checks)
	return Check{}
}

const healthyConfig = `dev_server:
  command: sh
  work_dir: $DIR
  default_url: http://127.0.0.1:1
  probe_timeout: 200ms
`

func TestDoctor_Healthy(t *testing.T) {
	writeConfig(t, healthyConfig)

	cmd := NewDoctorCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected healthy result, got %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "Overall Status: Ready") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestDoctor_Failures(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		failCheck string
	}{
		{
			name: "missing work dir",
			config: `dev_server:
  command: sh
  work_dir: $DIR/does-not-exist
  default_url: http://127.0.0.1:1
`,
			failCheck: "work_dir",
		},
		{
			name: "unknown command",
			config: `dev_server:
  command: devctl-test-no-such-binary
  work_dir: $DIR
  default_url: http://127.0.0.1:1
`,
			failCheck: "command",
		},
		{
			name: "invalid config",
			config: `dev_server:
  work_dir: $DIR
  default_url: not a url
`,
			failCheck: "config",
		},
		{
			name: "bad restart glob",
			config: `dev_server:
  command: sh
  work_dir: $DIR
  default_url: http://127.0.0.1:1
  restart_on: ["src/[oops"]
`,
			failCheck: "restart_on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.config)

			result := diagnose(t.Context())
			if result.Healthy {
				t.Fatalf("expected unhealthy result: %+v", result.Checks)
			}
			if c := findCheck(t, result, tt.failCheck); c.Status != StatusFail {
				t.Errorf("expected %s to fail, got %+v", tt.failCheck, c)
			}

			cmd := NewDoctorCommand()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{})
			err := cmd.Execute()
			var exitErr *shared.ExitError
			if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitFailure {
				t.Errorf("expected exit code 1, got %v", err)
			}
		})
	}
}

func TestDoctor_URLAlreadyAnswering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	writeConfig(t, `dev_server:
  command: sh
  work_dir: $DIR
  default_url: `+srv.URL+`
`)

	result := diagnose(t.Context())
	if !result.Healthy {
		t.Fatalf("warnings must not fail: %+v", result.Checks)
	}
	if c := findCheck(t, result, "default_url"); c.Status != StatusWarn {
		t.Errorf("expected default_url warning, got %+v", c)
	}
}

func TestDoctor_StalePIDFile(t *testing.T) {
	dir := writeConfig(t, healthyConfig+"  pid_file: devctl.pid\n")
	if err := os.WriteFile(filepath.Join(dir, "devctl.pid"), []byte("999999999\n"), 0600); err != nil {
		t.Fatal(err)
	}

	result := diagnose(t.Context())
	c := findCheck(t, result, "pid_file")
	if c.Status != StatusOK || !strings.Contains(c.Detail, "not running") {
		t.Errorf("expected stale pid file report, got %+v", c)
	}
}

func TestDoctor_JSON(t *testing.T) {
	writeConfig(t, healthyConfig)
	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)

	cmd := NewDoctorCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("doctor failed: %v", err)
	}

	var result DoctorResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if !result.Healthy || !result.Success || result.Command != "doctor" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Checks) < 4 {
		t.Errorf("expected at least 4 checks, got %d", len(result.Checks))
	}
}
