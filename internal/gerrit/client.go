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

// Package gerrit is a minimal Gerrit REST client for reading the
// per-project CI configuration exposed by the checks plugin.
package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// XSSIPrefix precedes every JSON body served by the Gerrit REST API.
const XSSIPrefix = ")]}'"

const maxBodySize = 1 << 20

// CIServerConfig is one entry of the {plugin}~config view.
type CIServerConfig struct {
	Name string   `json:"name" yaml:"name"`
	URL  string   `json:"url" yaml:"url"`
	Jobs []string `json:"jobs" yaml:"jobs"`
}

// Client reads from one Gerrit server.
type Client struct {
	baseURL       string
	pluginName    string
	authenticated bool
	httpClient    *http.Client
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Defaults to http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthenticated routes requests through the /a/ prefix, which Gerrit
// requires for requests carrying credentials.
func WithAuthenticated(auth bool) Option {
	return func(c *Client) { c.authenticated = auth }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a client for baseURL scoped to pluginName.
func NewClient(baseURL, pluginName string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		pluginName: pluginName,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	c.logger = ilog.WithComponent(c.logger, "gerrit")
	return c
}

// PluginName returns the plugin the config view is scoped to.
func (c *Client) PluginName() string {
	return c.pluginName
}

// ConfigURL returns the config view URL for a repository.
func (c *Client) ConfigURL(repository string) string {
	prefix := ""
	if c.authenticated {
		prefix = "/a"
	}
	return fmt.Sprintf("%s%s/projects/%s/%s~config",
		c.baseURL, prefix, url.PathEscape(repository), url.PathEscape(c.pluginName))
}

// FetchConfig reads the CI servers configured for a repository.
func (c *Client) FetchConfig(ctx context.Context, repository string) ([]CIServerConfig, error) {
	ctx, span := c.tracer.Start(ctx, "gerrit.FetchConfig",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("checks.repository", repository)),
	)
	defer span.End()

	var servers []CIServerConfig
	if err := c.getJSON(ctx, c.ConfigURL(repository), &servers); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if servers == nil {
		servers = []CIServerConfig{}
	}
	return servers, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return checkserrors.Wrap(err, "building gerrit request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return checkserrors.Wrapf(err, "requesting %s", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return checkserrors.Wrapf(err, "reading %s", rawURL)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &checkserrors.NotFoundError{Resource: "gerrit resource", ID: rawURL}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("gerrit returned HTTP %d for %s: %s",
			resp.StatusCode, rawURL, strings.TrimSpace(string(body)))
	}

	ilog.Trace(ctx, c.logger, "gerrit response", slog.String("url", rawURL), slog.String("body", string(body)))

	if err := json.Unmarshal(StripXSSI(body), out); err != nil {
		return checkserrors.Wrapf(err, "decoding response from %s", rawURL)
	}
	return nil
}

// StripXSSI removes the XSSI guard line when present.
func StripXSSI(body []byte) []byte {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if rest, ok := bytes.CutPrefix(trimmed, []byte(XSSIPrefix)); ok {
		return rest
	}
	return body
}
