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

// Package config loads devctl configuration from YAML, environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/devctl/internal/devserver"
	pkgerrors "github.com/tombee/devctl/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Tracing exporters accepted by tracing.exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Exporters lists every accepted tracing exporter.
var Exporters = []string{ExporterNone, ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC}

// Config represents the complete devctl configuration.
type Config struct {
	DevServer DevServerConfig `yaml:"dev_server"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// DevServerConfig configures the managed dev server.
type DevServerConfig struct {
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args,omitempty"`
	WorkDir    string            `yaml:"work_dir"`
	Env        map[string]string `yaml:"env,omitempty"`
	InheritEnv *bool             `yaml:"inherit_env,omitempty"`

	DefaultURL       string   `yaml:"default_url"`
	ReadyTimeout     Duration `yaml:"ready_timeout"`
	PollInterval     Duration `yaml:"poll_interval"`
	ProbeTimeout     Duration `yaml:"probe_timeout"`
	GracefulTimeout  Duration `yaml:"graceful_timeout"`
	ForceKillTimeout Duration `yaml:"force_kill_timeout"`

	LogCapacity   int `yaml:"log_capacity"`
	MaxLineLength int `yaml:"max_line_length"`

	PIDFile  string `yaml:"pid_file,omitempty"`
	EventLog string `yaml:"event_log,omitempty"`

	// RestartOn holds doublestar globs, relative to WorkDir, whose changes
	// restart the dev server.
	RestartOn []string `yaml:"restart_on,omitempty"`
}

// LogConfig configures devctl's own logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`

	AddSource bool `yaml:"add_source,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr enables /metrics on the given listen address when non-empty.
	Addr string `yaml:"addr"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"service_name"`
}

// Default returns a Config with default values.
func Default() *Config {
	inherit := true
	return &Config{
		DevServer: DevServerConfig{
			Command:          "npm",
			Args:             []string{"run", "dev"},
			InheritEnv:       &inherit,
			DefaultURL:       devserver.DefaultURL,
			ReadyTimeout:     Duration(devserver.DefaultReadyTimeout),
			PollInterval:     Duration(devserver.DefaultPollInterval),
			ProbeTimeout:     Duration(devserver.DefaultProbeTimeout),
			GracefulTimeout:  Duration(devserver.DefaultGracefulTimeout),
			ForceKillTimeout: Duration(devserver.DefaultForceKillTimeout),
			LogCapacity:      devserver.DefaultLogCapacity,
			MaxLineLength:    devserver.DefaultMaxLineLength,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    ExporterNone,
			ServiceName: "devctl",
		},
	}
}

// Override adjusts a loaded Config before validation. Command-line flags
// are applied this way so they take precedence over the environment.
type Override func(*Config)

// WorkDirFallback sets the working directory when neither the file nor
// the environment supplied one.
func WorkDirFallback(dir string) Override {
	return func(c *Config) {
		if c.DevServer.WorkDir == "" {
			c.DevServer.WorkDir = dir
		}
	}
}

// Load loads configuration from the given path, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(configPath string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &pkgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	cfg.loadFromEnv()

	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &pkgerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDefault loads the config file at DefaultPath when it exists and
// falls back to defaults plus environment otherwise.
func LoadDefault(overrides ...Override) (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Load("", overrides...)
	}
	if _, err := os.Stat(path); err != nil {
		return Load("", overrides...)
	}
	return Load(path, overrides...)
}

// applyDefaults fills zero values left behind by a partial config file.
func (c *Config) applyDefaults() {
	def := Default()
	ds := &c.DevServer

	if ds.Command == "" {
		ds.Command = def.DevServer.Command
		if len(ds.Args) == 0 {
			ds.Args = def.DevServer.Args
		}
	}
	if ds.InheritEnv == nil {
		ds.InheritEnv = def.DevServer.InheritEnv
	}
	if ds.DefaultURL == "" {
		ds.DefaultURL = def.DevServer.DefaultURL
	}
	if ds.ReadyTimeout == 0 {
		ds.ReadyTimeout = def.DevServer.ReadyTimeout
	}
	if ds.PollInterval == 0 {
		ds.PollInterval = def.DevServer.PollInterval
	}
	if ds.ProbeTimeout == 0 {
		ds.ProbeTimeout = def.DevServer.ProbeTimeout
	}
	if ds.GracefulTimeout == 0 {
		ds.GracefulTimeout = def.DevServer.GracefulTimeout
	}
	if ds.ForceKillTimeout == 0 {
		ds.ForceKillTimeout = def.DevServer.ForceKillTimeout
	}
	if ds.LogCapacity == 0 {
		ds.LogCapacity = def.DevServer.LogCapacity
	}
	if ds.MaxLineLength == 0 {
		ds.MaxLineLength = def.DevServer.MaxLineLength
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = def.Tracing.Exporter
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = def.Tracing.ServiceName
	}
}

func (c *Config) loadFromFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return pkgerrors.Wrapf(err, "failed to parse YAML in %s", filepath.Base(path))
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
// Malformed values are ignored and the previous value is kept.
func (c *Config) loadFromEnv() {
	ds := &c.DevServer

	if val := os.Getenv("DEVCTL_WORKDIR"); val != "" {
		ds.WorkDir = val
	}
	if val := os.Getenv("DEVCTL_DEFAULT_URL"); val != "" {
		ds.DefaultURL = val
	}
	envDuration("DEVCTL_READY_TIMEOUT", &ds.ReadyTimeout)
	envDuration("DEVCTL_POLL_INTERVAL", &ds.PollInterval)
	envDuration("DEVCTL_PROBE_TIMEOUT", &ds.ProbeTimeout)
	envDuration("DEVCTL_GRACEFUL_TIMEOUT", &ds.GracefulTimeout)
	envDuration("DEVCTL_FORCE_KILL_TIMEOUT", &ds.ForceKillTimeout)
	if val := os.Getenv("DEVCTL_LOG_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			ds.LogCapacity = n
		}
	}
	if val := os.Getenv("DEVCTL_PID_FILE"); val != "" {
		ds.PIDFile = val
	}
	if val := os.Getenv("DEVCTL_EVENT_LOG"); val != "" {
		ds.EventLog = val
	}

	if val := os.Getenv("DEVCTL_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
	}
	if val := os.Getenv("DEVCTL_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("DEVCTL_TRACING_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
}

func envDuration(key string, dst *Duration) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	if d, err := ParseDuration(val); err == nil {
		*dst = d
	}
}

// Validate checks the configuration for errors. All problems are reported
// together in a single *pkgerrors.ValidationError.
func (c *Config) Validate() error {
	var errs []string
	ds := c.DevServer

	if strings.TrimSpace(ds.WorkDir) == "" {
		errs = append(errs, "dev_server.work_dir is required")
	}
	if strings.TrimSpace(ds.Command) == "" {
		errs = append(errs, "dev_server.command is required")
	}

	durations := []struct {
		key string
		val Duration
	}{
		{"dev_server.ready_timeout", ds.ReadyTimeout},
		{"dev_server.poll_interval", ds.PollInterval},
		{"dev_server.probe_timeout", ds.ProbeTimeout},
		{"dev_server.graceful_timeout", ds.GracefulTimeout},
		{"dev_server.force_kill_timeout", ds.ForceKillTimeout},
	}
	for _, d := range durations {
		if d.val <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got %v", d.key, d.val.Std()))
		}
	}

	if ds.LogCapacity <= 0 {
		errs = append(errs, fmt.Sprintf("dev_server.log_capacity must be positive, got %d", ds.LogCapacity))
	}
	if ds.MaxLineLength < 0 {
		errs = append(errs, fmt.Sprintf("dev_server.max_line_length must be non-negative, got %d", ds.MaxLineLength))
	}

	if u, err := url.Parse(ds.DefaultURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("dev_server.default_url must be an absolute http(s) URL, got %q", ds.DefaultURL))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if !validExporter(c.Tracing.Exporter) {
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %s, got %q", strings.Join(Exporters, ", "), c.Tracing.Exporter))
	}

	if len(errs) > 0 {
		return &pkgerrors.ValidationError{
			Message:    fmt.Sprintf("%v:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - ")),
			Suggestion: "Check the config file and DEVCTL_* environment variables",
		}
	}

	return nil
}

func validExporter(name string) bool {
	for _, e := range Exporters {
		if e == name {
			return true
		}
	}
	return false
}

// ManagerOptions converts the dev server section into devserver.Options.
// Relative PID and event log paths resolve against WorkDir.
func (c *Config) ManagerOptions() devserver.Options {
	ds := c.DevServer
	return devserver.Options{
		Command:          ds.Command,
		Args:             append([]string(nil), ds.Args...),
		WorkDir:          ds.WorkDir,
		Env:              ds.Env,
		ClearEnv:         ds.InheritEnv != nil && !*ds.InheritEnv,
		DefaultURL:       ds.DefaultURL,
		ReadyTimeout:     ds.ReadyTimeout.Std(),
		PollInterval:     ds.PollInterval.Std(),
		ProbeTimeout:     ds.ProbeTimeout.Std(),
		GracefulTimeout:  ds.GracefulTimeout.Std(),
		ForceKillTimeout: ds.ForceKillTimeout.Std(),
		LogCapacity:      ds.LogCapacity,
		MaxLineLength:    ds.MaxLineLength,
		PIDFile:          resolve(ds.WorkDir, ds.PIDFile),
		EventLog:         resolve(ds.WorkDir, ds.EventLog),
	}
}

func resolve(base, path string) string {
	if path == "" {
		return ""
	}
	if p, err := expandHome(path); err == nil {
		path = p
	}
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Duration is a time.Duration that unmarshals from Go duration syntax
// ("5s") or a bare integer number of milliseconds (5000).
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// ParseDuration parses Go duration syntax or an integer millisecond count.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: expected Go duration syntax or milliseconds", s)
	}
	return Duration(d), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
