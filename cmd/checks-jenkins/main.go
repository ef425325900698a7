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

package main

import (
	"log/slog"

	"github.com/tombee/checks-jenkins/internal/cli"
	"github.com/tombee/checks-jenkins/internal/commands/credentials"
	"github.com/tombee/checks-jenkins/internal/commands/fetch"
	"github.com/tombee/checks-jenkins/internal/commands/rerun"
	"github.com/tombee/checks-jenkins/internal/commands/serve"
	"github.com/tombee/checks-jenkins/internal/commands/urls"
	versioncmd "github.com/tombee/checks-jenkins/internal/commands/version"
	ilog "github.com/tombee/checks-jenkins/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Used until a command loads its config and builds its own logger.
	slog.SetDefault(ilog.New(ilog.FromEnv()))

	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Checks
	rootCmd.AddCommand(fetch.NewCommand())
	rootCmd.AddCommand(rerun.NewCommand())
	rootCmd.AddCommand(urls.NewCommand())

	// Provider
	rootCmd.AddCommand(serve.NewCommand())

	// Configuration
	rootCmd.AddCommand(credentials.NewCommand())

	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
