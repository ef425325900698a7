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
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// New creates a new HTTP client with the given configuration.
//
// Layers, innermost first: base transport, credentials, logging, rate
// limiting, retry. Retries therefore re-enter the limiter and every attempt
// is logged.
//
// Returns an error if the configuration is invalid.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return NewWithTransport(cfg, baseTransport)
}

// NewWithTransport builds a client on top of the given base transport. Tests
// use it to wrap httptest transports with the same layering as New.
func NewWithTransport(cfg Config, base http.RoundTripper) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var rt http.RoundTripper = base
	if len(cfg.Credentials) > 0 {
		rt = newCredentialsTransport(rt, cfg.Credentials)
	}
	rt = newLoggingTransport(rt, cfg.UserAgent)
	if cfg.RequestsPerSecond > 0 {
		rt = newRateLimitTransport(rt, cfg.RequestsPerSecond, cfg.Burst)
	}
	if cfg.RetryAttempts > 0 {
		rt = newRetryTransport(rt, cfg)
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}

	if cfg.CookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return client, nil
}
