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

package checks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/checks-jenkins/internal/gerrit"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// Config sources reported in ResolveResult.Source.
const (
	SourceCache    = "cache"
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// DefaultFallbackServers is used when the config lookup fails.
func DefaultFallbackServers() []CIServer {
	return []CIServer{{
		Name: "Gerrit CI",
		URL:  "https://gerrit-ci.gerritforge.com",
		Jobs: []string{"Gerrit-verifier-pipeline"},
	}}
}

// ErrNoConfigSource is the cause recorded when no lookup is configured.
var ErrNoConfigSource = errors.New("no configuration source")

// ConfigSource looks up the CI servers configured for a repository.
type ConfigSource interface {
	FetchConfig(ctx context.Context, repository string) ([]CIServer, error)
}

// ConfigSourceFunc adapts a function to ConfigSource.
type ConfigSourceFunc func(ctx context.Context, repository string) ([]CIServer, error)

func (f ConfigSourceFunc) FetchConfig(ctx context.Context, repository string) ([]CIServer, error) {
	return f(ctx, repository)
}

// GerritSource reads the config view through a Gerrit client.
func GerritSource(client *gerrit.Client) ConfigSource {
	return ConfigSourceFunc(func(ctx context.Context, repository string) ([]CIServer, error) {
		entries, err := client.FetchConfig(ctx, repository)
		if err != nil {
			return nil, err
		}
		servers := make([]CIServer, 0, len(entries))
		for _, e := range entries {
			servers = append(servers, CIServer{Name: e.Name, URL: e.URL, Jobs: e.Jobs})
		}
		return servers, nil
	})
}

// ResolveResult is the outcome of Resolve. Cause is set when Source is
// SourceFallback.
type ResolveResult struct {
	Servers []CIServer
	Source  string
	Cause   error
}

// Resolver resolves the CI config once and caches it for its lifetime.
// The cached slice is shared; callers must not modify it.
type Resolver struct {
	source   ConfigSource
	fallback []CIServer
	disabled bool

	cache atomic.Pointer[[]CIServer]

	logger  *slog.Logger
	metrics *tracing.Metrics
	tracer  trace.Tracer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFallbackServers replaces the built-in fallback entry.
func WithFallbackServers(servers []CIServer) ResolverOption {
	return func(r *Resolver) {
		if len(servers) > 0 {
			r.fallback = servers
		}
	}
}

// WithoutFallback makes lookup failures errors. Nothing is cached after a
// failure, so the next call retries.
func WithoutFallback() ResolverOption {
	return func(r *Resolver) { r.disabled = true }
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func WithResolverMetrics(m *tracing.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

func WithResolverTracer(t trace.Tracer) ResolverOption {
	return func(r *Resolver) { r.tracer = t }
}

// NewResolver creates a resolver. A nil source always falls back.
func NewResolver(source ConfigSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:   source,
		fallback: DefaultFallbackServers(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	r.logger = ilog.WithComponent(r.logger, "resolver")
	return r
}

// Resolve returns the CI servers for repository. Only the first successful
// resolution performs a lookup. Concurrent first calls may each look up;
// the last one to finish wins.
func (r *Resolver) Resolve(ctx context.Context, repository string) (ResolveResult, error) {
	if cached := r.cache.Load(); cached != nil {
		r.metrics.RecordConfigLookup(ctx, SourceCache)
		return ResolveResult{Servers: *cached, Source: SourceCache}, nil
	}

	ctx, span := r.tracer.Start(ctx, "checks.ResolveConfig",
		trace.WithAttributes(attribute.String("checks.repository", repository)),
	)
	defer span.End()

	var (
		servers []CIServer
		err     error
	)
	if r.source == nil {
		err = ErrNoConfigSource
	} else {
		servers, err = r.source.FetchConfig(ctx, repository)
	}

	if err == nil {
		if servers == nil {
			servers = []CIServer{}
		}
		r.cache.Store(&servers)
		r.metrics.RecordConfigLookup(ctx, SourceRemote)
		span.SetAttributes(
			attribute.String("checks.config_source", SourceRemote),
			attribute.Int("checks.servers", len(servers)),
		)
		return ResolveResult{Servers: servers, Source: SourceRemote}, nil
	}

	span.RecordError(err)

	if r.disabled {
		span.SetStatus(codes.Error, err.Error())
		return ResolveResult{}, &checkserrors.ConfigError{
			Key:    "repository " + repository,
			Reason: "CI configuration lookup failed",
			Cause:  err,
		}
	}

	fallback := r.fallback
	r.cache.Store(&fallback)
	r.metrics.RecordConfigLookup(ctx, SourceFallback)
	r.metrics.RecordFallback(ctx, tracing.KindConfig)
	span.SetAttributes(attribute.String("checks.config_source", SourceFallback))

	r.logger.WarnContext(ctx, "CI config lookup failed, using fallback",
		ilog.RepositoryKey, repository,
		"error", err,
	)
	return ResolveResult{Servers: fallback, Source: SourceFallback, Cause: err}, nil
}

// Cached returns the resolved servers, or nil before the first resolution.
func (r *Resolver) Cached() []CIServer {
	if cached := r.cache.Load(); cached != nil {
		return *cached
	}
	return nil
}

// FallbackServers returns the servers substituted on lookup failure.
func (r *Resolver) FallbackServers() []CIServer {
	return r.fallback
}

// OwnsURL reports whether rawURL lives under one of the servers resolved
// so far or the fallback servers.
func (r *Resolver) OwnsURL(rawURL string) bool {
	return ownsURL(r.Cached(), rawURL) || (!r.disabled && ownsURL(r.fallback, rawURL))
}

func ownsURL(servers []CIServer, rawURL string) bool {
	for _, s := range servers {
		base := strings.TrimSuffix(s.URL, "/")
		if base != "" && strings.HasPrefix(rawURL, base+"/") {
			return true
		}
	}
	return false
}
