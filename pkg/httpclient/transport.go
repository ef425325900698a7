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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tombee/checks-jenkins/internal/tracing"
)

// loggingTransport wraps an http.RoundTripper to add:
// - Request logging with sanitized URLs
// - User-Agent header injection
// - Correlation ID propagation
// - Duration tracking
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
}

func newLoggingTransport(base http.RoundTripper, userAgent string) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &loggingTransport{
		base:      base,
		userAgent: userAgent,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	if corrID := tracing.FromContextOrEmpty(req.Context()); corrID.IsValid() {
		req.Header.Set(tracing.HeaderCorrelationID, corrID.String())
	}

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	logURL := sanitizeURL(req.URL)

	if err != nil {
		slog.Warn("http request failed",
			"method", req.Method,
			"url", logURL,
			"duration_ms", duration,
			"error", err.Error(),
		)
	} else {
		level := slog.LevelDebug
		if resp.StatusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(req.Context(), level, "http request",
			"method", req.Method,
			"url", logURL,
			"status", resp.StatusCode,
			"duration_ms", duration,
		)
	}

	return resp, err
}

// credentialsTransport attaches basic auth to requests whose host has a
// configured credential. Requests to any other host go out untouched, so a
// CI token is never sent to the review system or a third-party URL.
type credentialsTransport struct {
	base  http.RoundTripper
	hosts map[string]Credential
}

func newCredentialsTransport(base http.RoundTripper, creds []Credential) *credentialsTransport {
	hosts := make(map[string]Credential, len(creds))
	for _, c := range creds {
		hosts[strings.ToLower(c.Host)] = c
	}
	return &credentialsTransport{base: base, hosts: hosts}
}

// RoundTrip implements http.RoundTripper.
func (t *credentialsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cred, ok := t.lookup(req)
	if !ok || req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.SetBasicAuth(cred.Username, cred.Token)
	return t.base.RoundTrip(req)
}

func (t *credentialsTransport) lookup(req *http.Request) (Credential, bool) {
	if req.URL == nil {
		return Credential{}, false
	}
	if cred, ok := t.hosts[strings.ToLower(req.URL.Host)]; ok {
		return cred, true
	}
	cred, ok := t.hosts[strings.ToLower(req.URL.Hostname())]
	return cred, ok
}
