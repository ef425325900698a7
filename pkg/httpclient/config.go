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
	"strings"
	"time"
)

// Credential is a basic-auth credential attached to requests for one host.
type Credential struct {
	// Host is matched against the request host (port included when present).
	Host string

	Username string
	Token    string
}

// Config configures the HTTP client with timeout, retry and rate settings.
type Config struct {
	// Timeout is the total request timeout (includes retries).
	// Default: 30s. Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts (0 = no retries).
	// Default: 2. Must be >= 0.
	RetryAttempts int

	// RetryBackoff is the initial backoff delay before first retry.
	// Default: 100ms. Must be > 0 if RetryAttempts > 0.
	RetryBackoff time.Duration

	// MaxBackoff is the maximum backoff delay cap.
	// Default: 5s. Must be >= RetryBackoff.
	MaxBackoff time.Duration

	// RequestsPerSecond caps outbound requests per client. 0 disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter bucket size. Defaults to 1 when limiting is on.
	Burst int

	// UserAgent is the User-Agent header value. Required.
	UserAgent string

	// AllowNonIdempotentRetry enables retry for POST, PUT, PATCH, DELETE.
	AllowNonIdempotentRetry bool

	// Credentials are attached as basic auth to matching hosts only.
	Credentials []Credential

	// CookieJar keeps session cookies between requests.
	CookieJar bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		RetryBackoff:  100 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
		UserAgent:     "checks-jenkins/1.0",
		CookieJar:     true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0, got %d", c.RetryAttempts)
	}

	if c.RetryAttempts > 0 {
		if c.RetryBackoff <= 0 {
			return fmt.Errorf("retry_backoff must be > 0 when retry_attempts > 0, got %v", c.RetryBackoff)
		}

		if c.MaxBackoff < c.RetryBackoff {
			return fmt.Errorf("max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)
		}
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0, got %v", c.RequestsPerSecond)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}

	for i, cred := range c.Credentials {
		if strings.TrimSpace(cred.Host) == "" {
			return fmt.Errorf("credentials[%d]: host is required", i)
		}
	}

	return nil
}
