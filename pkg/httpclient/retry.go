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
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type noRetryKey struct{}

// WithoutRetry marks requests made with ctx as single-shot. Use it for GETs
// that are not idempotent, such as Jenkins rebuild links.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retryDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey{}).(bool)
	return v
}

// retryTransport wraps an http.RoundTripper to add retry logic with exponential backoff.
type retryTransport struct {
	base                    http.RoundTripper
	maxAttempts             int
	baseBackoff             time.Duration
	maxBackoff              time.Duration
	allowNonIdempotentRetry bool
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &retryTransport{
		base:                    base,
		maxAttempts:             cfg.RetryAttempts + 1,
		baseBackoff:             cfg.RetryBackoff,
		maxBackoff:              cfg.MaxBackoff,
		allowNonIdempotentRetry: cfg.AllowNonIdempotentRetry,
	}
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if retryDisabled(req.Context()) {
		return t.base.RoundTrip(req)
	}
	if !isIdempotentMethod(req.Method) && !t.allowNonIdempotentRetry {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	var lastErr error
	var lastResp *http.Response

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := t.calculateBackoff(attempt - 1)
			if lastResp != nil {
				if retryAfter := parseRetryAfter(lastResp); retryAfter > 0 && retryAfter < delay {
					delay = retryAfter
				}
			}

			// Give up early when the caller's deadline lands inside the wait.
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
				break
			}

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && !shouldRetryStatus(resp.StatusCode) {
			return resp, nil
		}

		if err != nil && !isRetryableError(err) {
			return nil, err
		}

		// The previous response is discarded; only the final one is returned open.
		if lastResp != nil && lastResp.Body != nil {
			lastResp.Body.Close()
		}
		lastErr = err
		lastResp = resp

		if ctx.Err() != nil {
			if lastResp != nil && lastResp.Body != nil {
				lastResp.Body.Close()
			}
			return nil, ctx.Err()
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

// isIdempotentMethod reports whether method is safe to auto-retry.
func isIdempotentMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func shouldRetryStatus(statusCode int) bool {
	switch {
	case statusCode >= 500 && statusCode < 600:
		return true
	case statusCode == http.StatusRequestTimeout:
		return true
	case statusCode == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRetryableError(urlErr.Err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	transientKeywords := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"temporary failure in name resolution",
		"eof",
	}

	for _, keyword := range transientKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}

	return false
}

// calculateBackoff computes the delay for a given attempt with exponential backoff and jitter.
func (t *retryTransport) calculateBackoff(attempt int) time.Duration {
	backoff := float64(t.baseBackoff) * math.Pow(2.0, float64(attempt-1))
	if backoff > float64(t.maxBackoff) {
		backoff = float64(t.maxBackoff)
	}

	// 0-20% jitter
	jitter := rand.Float64() * backoff * 0.2

	return time.Duration(backoff + jitter)
}

// parseRetryAfter extracts the Retry-After header value in seconds or
// HTTP-date form. Returns 0 if the header is missing or invalid.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(header); err == nil {
		if delay := time.Until(retryTime); delay > 0 {
			return delay
		}
	}

	return 0
}
