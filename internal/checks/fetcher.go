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
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tombee/checks-jenkins/internal/jenkins"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// DefaultMaxConcurrency bounds parallel CI requests within one fetch.
const DefaultMaxConcurrency = 4

// Fetcher is the Provider backed by Jenkins.
type Fetcher struct {
	resolver       *Resolver
	client         *jenkins.Client
	maxConcurrency int

	logger  *slog.Logger
	metrics *tracing.Metrics
	tracer  trace.Tracer
}

var _ Provider = (*Fetcher)(nil)

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithMaxConcurrency bounds parallel CI requests. Values below 1 mean 1.
func WithMaxConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.maxConcurrency = n
	}
}

func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *tracing.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

func WithTracer(t trace.Tracer) FetcherOption {
	return func(f *Fetcher) { f.tracer = t }
}

// NewFetcher creates a fetcher. The resolver carries the per-instance
// config cache, so one Fetcher should serve one repository.
func NewFetcher(resolver *Resolver, client *jenkins.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		resolver:       resolver,
		client:         client,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.tracer == nil {
		f.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	f.logger = ilog.WithComponent(f.logger, "fetcher")
	return f
}

// Resolver returns the fetcher's config resolver.
func (f *Fetcher) Resolver() *Resolver {
	return f.resolver
}

// Fetch collects the check runs of a patchset. It never panics and never
// returns an error: failures become an ERROR response.
func (f *Fetcher) Fetch(ctx context.Context, coords ChangeCoordinates) (resp FetchResponse) {
	ctx, span := f.tracer.Start(ctx, "checks.Fetch",
		trace.WithAttributes(
			attribute.String("checks.repository", coords.Repository),
			attribute.Int("checks.change", coords.Change),
			attribute.Int("checks.patchset", coords.Patchset),
		),
	)
	defer span.End()

	logger := ilog.WithChange(f.logger, coords.Repository, coords.Change, coords.Patchset)
	if id := tracing.FromContextOrEmpty(ctx); id != "" {
		logger = ilog.WithCorrelationID(logger, id.String())
	}

	done := f.metrics.FetchStarted(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "panic during checks fetch",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			resp = errorResponse(fmt.Sprintf("internal error: %v", r))
		}
		if resp.ResponseCode == ResponseError {
			span.SetStatus(codes.Error, resp.ErrorMessage)
		}
		span.SetAttributes(
			attribute.String("checks.response_code", string(resp.ResponseCode)),
			attribute.Int("checks.runs", len(resp.Runs)),
		)
		done(string(resp.ResponseCode))
	}()

	runs, err := f.collect(ctx, logger, coords)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "checks fetch failed", "error", err)
		return errorResponse(checkserrors.Message(err))
	}

	logger.DebugContext(ctx, "checks fetched", "runs", len(runs))
	return okResponse(runs)
}

type jobSlot struct {
	server  CIServer
	job     string
	listing jenkins.JobListing
}

type buildSlot struct {
	job string
	ref jenkins.BuildRef
	run CheckRun
}

// collect runs the pipeline in two bounded stages: every job listing, then
// every build. Slots keep server, job and build encounter order regardless
// of completion order.
func (f *Fetcher) collect(ctx context.Context, logger *slog.Logger, coords ChangeCoordinates) ([]CheckRun, error) {
	resolved, err := f.resolver.Resolve(ctx, coords.Repository)
	if err != nil {
		return nil, err
	}
	if len(resolved.Servers) == 0 {
		return []CheckRun{}, nil
	}

	var jobs []jobSlot
	for _, server := range resolved.Servers {
		for _, job := range server.Jobs {
			jobs = append(jobs, jobSlot{server: server, job: job})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)
	for i := range jobs {
		slot := &jobs[i]
		goSafe(g, func() error {
			url := jenkins.JobAPIURL(slot.server.URL, slot.job, coords.Change, coords.Patchset)
			res := f.client.FetchJobInfo(gctx, url)
			if res.Outcome == jenkins.OutcomeFallback {
				logger.WarnContext(gctx, "job listing substituted",
					ilog.ServerKey, slot.server.Name,
					ilog.JobKey, slot.job,
					"error", res.Cause,
				)
			}
			slot.listing = res.Listing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var builds []buildSlot
	for _, slot := range jobs {
		for _, ref := range slot.listing.Builds {
			builds = append(builds, buildSlot{job: slot.job, ref: ref})
		}
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)
	for i := range builds {
		slot := &builds[i]
		goSafe(g, func() error {
			res, err := f.client.FetchBuildInfo(gctx, jenkins.BuildAPIURL(slot.ref.URL))
			if err != nil {
				return err
			}
			detail := res.Detail
			if res.Outcome == jenkins.OutcomeFallback && detail.URL == "" {
				detail.Number = slot.ref.Number
				detail.URL = slot.ref.URL
			}
			logger.DebugContext(gctx, "build converted",
				ilog.JobKey, slot.job,
				ilog.BuildKey, detail.Number,
				"outcome", res.Outcome.String(),
			)
			slot.run = Convert(slot.job, coords, detail)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	runs := make([]CheckRun, len(builds))
	for i := range builds {
		runs[i] = builds[i].run
	}
	return runs, nil
}

// goSafe runs fn in g, turning a panic into an error so it reaches the
// response instead of killing the process.
func goSafe(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
			}
		}()
		return fn()
	})
}
