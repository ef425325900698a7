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
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimitTransport blocks each request until the limiter grants a token or
// the request context ends.
type rateLimitTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newRateLimitTransport(base http.RoundTripper, rps float64, burst int) *rateLimitTransport {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
