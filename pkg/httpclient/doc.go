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

// Package httpclient builds the HTTP clients used to probe dev servers.
//
// Probes are short, frequent, and expected to fail while a dev server is
// still booting, so the client differs from a general-purpose one:
//   - No retries. Callers poll on their own schedule.
//   - Failed requests are logged at debug level, not warn.
//   - Self-signed certificates can be accepted for local https dev servers.
//   - Trace context is injected so probes show up under the caller's span.
//
// Usage:
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	req, _ := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
//	resp, err := client.Do(req)
//
// Query parameters that look like credentials (token, key, secret, ...)
// are redacted before URLs are logged.
package httpclient
