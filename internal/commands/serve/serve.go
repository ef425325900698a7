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

// Package serve implements the serve command, which hosts the checks
// provider over HTTP for the Gerrit UI.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/checks-jenkins/internal/checks"
	"github.com/tombee/checks-jenkins/internal/commands/shared"
	"github.com/tombee/checks-jenkins/internal/server"
)

// NewCommand creates the serve command
func NewCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve check runs over HTTP",
		Long: `Serve starts the HTTP provider:

  GET  /changes/{project}/{change}/revisions/{patchset}/checks
  POST /actions/rerun
  GET  /projects/{project}/{plugin}~config   (from server.projects_file)
  GET  /v1/health
  GET  /metrics

Per-repository CI config comes from the Gerrit config view when gerrit.url
is set, otherwise from server.projects_file. The projects file is reloaded
when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, addr string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	app, err := shared.NewApp(ctx, cfg, shared.AppOptions{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	projects := server.NewProjectStore(cfg.Server.ProjectsFile, app.Logger)
	if err := projects.Err(); err != nil {
		return shared.NewConfigError("invalid projects file", err)
	}

	source := app.ConfigSource()
	if source == nil && projects.Path() != "" {
		source = projects
	}

	registry := server.NewBoundedRegistry(func(string) *checks.Fetcher {
		return app.NewFetcher(source)
	}, cfg.Server.MaxRepositories, app.FallbackServers()...)

	if err := projects.Watch(ctx, registry.Reset); err != nil {
		app.Logger.Warn("projects file will not be reloaded", "error", err)
	}

	version, _, _ := shared.GetVersion()
	router := server.NewRouter(server.RouterConfig{
		Version:        version,
		PluginName:     cfg.Gerrit.PluginName,
		Registry:       registry,
		Projects:       projects,
		Rerunner:       app.Rerunner(),
		MetricsHandler: app.Telemetry.MetricsHandler(),
		Logger:         app.Logger,
	})

	app.Logger.Info("starting checks provider",
		"addr", cfg.Server.Addr,
		"version", version,
		"gerrit", cfg.Gerrit.URL,
		"projects_file", cfg.Server.ProjectsFile,
	)

	if err := server.ListenAndServe(ctx, cfg.Server.Addr, router, cfg.Server.ShutdownTimeout, app.Logger); err != nil {
		return shared.NewExecutionError("server failed", err)
	}
	return nil
}
