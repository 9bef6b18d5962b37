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

import "github.com/spf13/pflag"

// globals holds the persistent flags every devctl command sees.
var globals struct {
	verbose bool
	quiet   bool
	json    bool
	config  string
}

// Build information, set once from main.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterGlobalFlags binds --verbose, --quiet, --json and --config on fs.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&globals.verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVarP(&globals.quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&globals.json, "json", false, "Output in JSON format")
	fs.StringVar(&globals.config, "config", "", "Path to config file (default: ~/.config/devctl/config.yaml)")
}

// SetVersion records build information for `devctl version`.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// Accessors for the global flags.
func GetVerbose() bool      { return globals.verbose }
func GetQuiet() bool        { return globals.quiet }
func GetJSON() bool         { return globals.json }
func GetConfigPath() string { return globals.config }

// SetConfigPathForTest overrides --config in tests.
func SetConfigPathForTest(path string) { globals.config = path }

// SetJSONForTest overrides --json in tests.
func SetJSONForTest(v bool) { globals.json = v }
