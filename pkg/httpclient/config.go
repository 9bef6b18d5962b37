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

package httpclient

import (
	"fmt"
	"log/slog"
	"time"
)

// Config configures a probe HTTP client.
type Config struct {
	// Timeout caps a single request including body read.
	// Default: 2s. Must be > 0.
	Timeout time.Duration

	// UserAgent is the User-Agent header value.
	// Required. Must be non-empty.
	UserAgent string

	// InsecureSkipVerify accepts self-signed certificates. Local dev servers
	// started with --https commonly use one.
	// Default: true.
	InsecureSkipVerify bool

	// MaxRedirects bounds how many redirects are followed. Zero disables
	// redirects so the first response status is reported as-is.
	// Default: 5.
	MaxRedirects int

	// Logger receives request logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:            2 * time.Second,
		UserAgent:          "devctl-probe/1.0",
		InsecureSkipVerify: true,
		MaxRedirects:       5,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must be >= 0, got %d", c.MaxRedirects)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}
	return nil
}
