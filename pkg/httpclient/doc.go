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

// Package httpclient provides the HTTP client factory used for every
// outbound request the checks adapter makes: the review-system config
// lookup, CI job listings, build details and rerun triggers.
//
// Clients are composed from transport layers:
//   - Ambient credentials: basic auth attached only for configured hosts
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection and correlation ID propagation
//   - Client-side rate limiting (golang.org/x/time/rate)
//   - Automatic retry with exponential backoff and jitter
//   - A cookie jar so CI session cookies are replayed like a browser would
//
// # Usage
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Credentials = []httpclient.Credential{
//	    {Host: "ci.example.com", Username: "bot", Token: token},
//	}
//	client, err := httpclient.New(cfg)
//
// # Retry Behavior
//
// The client retries transient failures with exponential backoff:
//   - HTTP 5xx, 408 and 429 (Retry-After honored)
//   - Network errors (connection refused, reset, temporary DNS failures)
//   - Only idempotent methods (GET, HEAD, OPTIONS) unless
//     AllowNonIdempotentRetry is set
//
// Requests carrying a context deadline stop retrying as soon as the
// deadline passes.
package httpclient
