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

package shared

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/checks-jenkins/internal/checks"
	"github.com/tombee/checks-jenkins/internal/config"
	"github.com/tombee/checks-jenkins/internal/gerrit"
	"github.com/tombee/checks-jenkins/internal/jenkins"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/secrets"
	"github.com/tombee/checks-jenkins/internal/tracing"
	"github.com/tombee/checks-jenkins/pkg/httpclient"
)

// App holds the collaborators shared by every command.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *tracing.Provider
	Secrets   config.SecretGetter
	HTTP      *http.Client
	Jenkins   *jenkins.Client

	// Gerrit is nil when no review server is configured.
	Gerrit *gerrit.Client

	tracer trace.Tracer
}

// AppOptions overrides process-wide defaults, mostly for tests.
type AppOptions struct {
	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Secrets replaces the env and keychain resolver.
	Secrets config.SecretGetter

	// LocalTelemetry keeps the tracer and meter providers out of the
	// otel globals.
	LocalTelemetry bool
}

// LoadConfig reads the file named by --config, or the default path when it
// exists.
func LoadConfig() (*config.Config, error) {
	path := GetConfigPath()
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}
	return cfg, nil
}

// NewApp builds the application from cfg.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	logOut := opts.LogOutput
	if logOut == nil {
		logOut = os.Stderr
	}

	logCfg := ilog.ApplyEnv(&ilog.Config{
		Level:  cfg.Log.Level,
		Format: ilog.Format(cfg.Log.Format),
		Output: logOut,
	})
	if GetVerbose() {
		logCfg.Level = "debug"
	}
	if GetQuiet() {
		logCfg.Level = "error"
	}
	logger := ilog.New(logCfg)

	v, _, _ := GetVersion()
	telemetryOpts := []tracing.ProviderOption{tracing.WithStdout(logOut)}
	if opts.LocalTelemetry {
		telemetryOpts = append(telemetryOpts, tracing.WithoutGlobal())
	}
	telemetry, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: v,
		Exporter:       cfg.Observability.Tracing,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.OTLPInsecure,
	}, telemetryOpts...)
	if err != nil {
		return nil, NewConfigError("failed to set up telemetry", err)
	}

	secretGetter := opts.Secrets
	if secretGetter == nil {
		secretGetter = secrets.NewDefaultResolver()
	}

	creds, err := cfg.ResolveCredentials(ctx, secretGetter)
	if err != nil {
		_ = telemetry.Shutdown(ctx)
		return nil, NewConfigError("failed to resolve credentials", err)
	}

	httpClient, err := httpclient.New(cfg.HTTPClientConfig(creds))
	if err != nil {
		_ = telemetry.Shutdown(ctx)
		return nil, NewConfigError("failed to create HTTP client", err)
	}

	tracer := telemetry.Tracer(tracing.InstrumentationName)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Telemetry: telemetry,
		Secrets:   secretGetter,
		HTTP:      httpClient,
		tracer:    tracer,
	}

	app.Jenkins = jenkins.NewClient(
		jenkins.WithHTTPClient(httpClient),
		jenkins.WithPolicy(Policy(cfg.Fetch)),
		jenkins.WithRequestTimeout(cfg.Fetch.RequestTimeout),
		jenkins.WithLogger(logger),
		jenkins.WithMetrics(telemetry.Metrics()),
		jenkins.WithTracer(tracer),
	)

	if cfg.Gerrit.URL != "" {
		app.Gerrit = gerrit.NewClient(cfg.Gerrit.URL, cfg.Gerrit.PluginName,
			gerrit.WithHTTPClient(httpClient),
			gerrit.WithAuthenticated(cfg.Gerrit.PasswordSecret != ""),
			gerrit.WithLogger(logger),
			gerrit.WithTracer(tracer),
		)
	}

	return app, nil
}

// Policy converts the fetch section into a fallback policy.
func Policy(fc config.FetchConfig) jenkins.FallbackPolicy {
	if fc.Policy != config.PolicyLenient {
		return jenkins.StrictPolicy()
	}

	builds := make([]jenkins.BuildRef, 0, len(fc.DemoBuilds))
	for _, b := range fc.DemoBuilds {
		builds = append(builds, jenkins.BuildRef{Number: b.Number, URL: b.URL})
	}

	var detail *jenkins.BuildDetail
	if d := fc.DemoBuild; d != nil {
		detail = &jenkins.BuildDetail{Number: d.Number, Building: d.Building, URL: d.URL}
		if d.Result != "" {
			detail.Result = jenkins.StringPtr(d.Result)
		}
	}
	return jenkins.LenientPolicy(builds, detail)
}

// FallbackServers returns the configured fallback servers, or nil for the
// built-in entry.
func (a *App) FallbackServers() []checks.CIServer {
	var servers []checks.CIServer
	for _, s := range a.Config.Fetch.FallbackServers {
		servers = append(servers, checks.CIServer{Name: s.Name, URL: s.URL, Jobs: s.Jobs})
	}
	return servers
}

// ConfigSource returns the Gerrit config view source, or nil when no review
// server is configured.
func (a *App) ConfigSource() checks.ConfigSource {
	if a.Gerrit == nil {
		return nil
	}
	return checks.GerritSource(a.Gerrit)
}

// NewFetcher creates a fetcher whose config comes from source.
func (a *App) NewFetcher(source checks.ConfigSource) *checks.Fetcher {
	resolverOpts := []checks.ResolverOption{
		checks.WithFallbackServers(a.FallbackServers()),
		checks.WithResolverLogger(a.Logger),
		checks.WithResolverMetrics(a.Telemetry.Metrics()),
		checks.WithResolverTracer(a.tracer),
	}
	if a.Config.Fetch.DisableFallbackConfig {
		resolverOpts = append(resolverOpts, checks.WithoutFallback())
	}

	return checks.NewFetcher(
		checks.NewResolver(source, resolverOpts...),
		a.Jenkins,
		checks.WithMaxConcurrency(a.Config.Fetch.MaxConcurrency),
		checks.WithLogger(a.Logger),
		checks.WithMetrics(a.Telemetry.Metrics()),
		checks.WithTracer(a.tracer),
	)
}

// Rerunner returns the action handler for rerun buttons.
func (a *App) Rerunner() *checks.Rerunner {
	return checks.NewRerunner(a.Jenkins, a.Logger)
}

// Close flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	return a.Telemetry.Shutdown(ctx)
}
