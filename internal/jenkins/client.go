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

package jenkins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
	"github.com/tombee/checks-jenkins/pkg/httpclient"
)

// maxBodySize caps how much of a Jenkins response is read.
const maxBodySize = 10 << 20

// Client reads job and build state from Jenkins servers. One Client serves
// any number of servers; credentials come from the HTTP client's transport.
type Client struct {
	httpClient     *http.Client
	policy         FallbackPolicy
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *tracing.Metrics
	tracer         trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPolicy sets the fallback policy. Defaults to StrictPolicy.
func WithPolicy(p FallbackPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRequestTimeout bounds every request. Zero leaves only the caller's deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *tracing.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a Jenkins client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		policy:     StrictPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	c.logger = ilog.WithComponent(c.logger, "jenkins")
	return c
}

// Policy returns the client's fallback policy.
func (c *Client) Policy() FallbackPolicy {
	return c.policy
}

// FetchJobInfo reads a job listing. It never fails: on any error the
// policy's listing is returned with OutcomeFallback and the cause.
func (c *Client) FetchJobInfo(ctx context.Context, jobURL string) JobInfoResult {
	ctx, span := c.tracer.Start(ctx, "jenkins.FetchJobInfo",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", jobURL)),
	)
	defer span.End()

	start := time.Now()
	var listing JobListing
	err := c.getJSON(ctx, jobURL, &listing)
	if err != nil {
		c.metrics.RecordCIRequest(ctx, tracing.KindJob, OutcomeFallback.String(), time.Since(start))
		c.metrics.RecordFallback(ctx, tracing.KindJob)
		span.RecordError(err)
		span.SetAttributes(attribute.String("checks.outcome", OutcomeFallback.String()))

		c.logger.WarnContext(ctx, "job listing unavailable, using fallback",
			"url", jobURL,
			"policy", c.policy.Name,
			"error", err,
		)
		return JobInfoResult{
			Listing: c.policy.jobListing(),
			Outcome: OutcomeFallback,
			Cause:   err,
		}
	}

	c.metrics.RecordCIRequest(ctx, tracing.KindJob, OutcomeLive.String(), time.Since(start))
	span.SetAttributes(
		attribute.String("checks.outcome", OutcomeLive.String()),
		attribute.Int("checks.builds", len(listing.Builds)),
	)

	listing.Exists = true
	if listing.Builds == nil {
		listing.Builds = []BuildRef{}
	}
	return JobInfoResult{Listing: listing, Outcome: OutcomeLive}
}

// FetchBuildInfo reads one build. Errors are returned unless the policy
// carries a substitute, in which case the result has OutcomeFallback.
func (c *Client) FetchBuildInfo(ctx context.Context, buildURL string) (BuildInfoResult, error) {
	ctx, span := c.tracer.Start(ctx, "jenkins.FetchBuildInfo",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", buildURL)),
	)
	defer span.End()

	start := time.Now()
	var detail BuildDetail
	err := c.getJSON(ctx, buildURL, &detail)
	if err == nil {
		c.metrics.RecordCIRequest(ctx, tracing.KindBuild, OutcomeLive.String(), time.Since(start))
		span.SetAttributes(
			attribute.String("checks.outcome", OutcomeLive.String()),
			attribute.Bool("checks.building", detail.Building),
		)
		return BuildInfoResult{Detail: detail, Outcome: OutcomeLive}, nil
	}

	span.RecordError(err)

	if c.policy.PropagatesBuildErrors() {
		c.metrics.RecordCIRequest(ctx, tracing.KindBuild, "error", time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		return BuildInfoResult{}, err
	}

	c.metrics.RecordCIRequest(ctx, tracing.KindBuild, OutcomeFallback.String(), time.Since(start))
	c.metrics.RecordFallback(ctx, tracing.KindBuild)
	span.SetAttributes(attribute.String("checks.outcome", OutcomeFallback.String()))

	c.logger.WarnContext(ctx, "build detail unavailable, using fallback",
		"url", buildURL,
		"policy", c.policy.Name,
		"error", err,
	)
	return BuildInfoResult{
		Detail:  c.policy.buildDetail(),
		Outcome: OutcomeFallback,
		Cause:   err,
	}, nil
}

// Trigger issues a GET to an action URL such as a build's rebuild link.
// Any 2xx or 3xx answer counts as success. The request is sent once, even
// on a 5xx, since every delivery can queue a build.
func (c *Client) Trigger(ctx context.Context, actionURL string) error {
	ctx, span := c.tracer.Start(ctx, "jenkins.Trigger",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", actionURL)),
	)
	defer span.End()

	start := time.Now()
	resp, body, err := c.do(httpclient.WithoutRetry(ctx), actionURL)
	if err == nil && resp.StatusCode >= 400 {
		err = ParseError(resp, body)
	}
	if err != nil {
		c.metrics.RecordCIRequest(ctx, tracing.KindTrigger, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.metrics.RecordCIRequest(ctx, tracing.KindTrigger, OutcomeLive.String(), time.Since(start))
	return nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, body, err := c.do(ctx, rawURL)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseError(resp, body)
	}

	ilog.Trace(ctx, c.logger, "jenkins response",
		slog.String("url", rawURL),
		slog.String("body", string(body)),
	)

	if err := json.Unmarshal(body, out); err != nil {
		return &checkserrors.CIError{
			Server:     serverOf(rawURL),
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    "invalid JSON response",
			Cause:      err,
		}
	}
	return nil
}

// do performs a GET and returns the response with its body fully read.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, []byte, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, &checkserrors.CIError{
			URL:     rawURL,
			Message: "invalid request URL",
			Cause:   err,
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, &checkserrors.TimeoutError{
				Operation: fmt.Sprintf("GET %s", rawURL),
				Duration:  c.requestTimeout,
				Cause:     err,
			}
		}
		return nil, nil, &checkserrors.CIError{
			Server:  serverOf(rawURL),
			URL:     rawURL,
			Message: "request failed",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, &checkserrors.CIError{
			Server:     serverOf(rawURL),
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    "failed to read response body",
			Cause:      err,
		}
	}

	return resp, body, nil
}
