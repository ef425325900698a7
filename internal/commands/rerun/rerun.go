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

// Package rerun implements the rerun command.
package rerun

import (
	"github.com/spf13/cobra"

	"github.com/tombee/checks-jenkins/internal/commands/shared"
	"github.com/tombee/checks-jenkins/internal/tracing"
)

// NewCommand creates the rerun command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rerun <action-url>",
		Short: "Trigger the Rerun action of a check run",
		Long: `Rerun issues the request behind a check run's Rerun action, usually the
build's rebuild URL, with the configured credentials.`,
		Example: "  checks-jenkins rerun https://gerrit-ci.gerritforge.com/job/Gerrit-verifier-pipeline/job/79%252F346479%252F3/1/rebuild",
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	ctx := tracing.ToContext(cmd.Context(), tracing.NewCorrelationID())
	app, err := shared.NewApp(ctx, cfg, shared.AppOptions{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	res := app.Rerunner().Trigger(ctx, args[0])

	if shared.GetJSON() {
		if err := shared.EmitJSON(cmd.OutOrStdout(), res); err != nil {
			return shared.NewExecutionError("failed to write output", err)
		}
	} else if res.ShouldReload {
		cmd.Println(shared.RenderOK(res.Message))
	} else {
		cmd.Println(shared.RenderError(res.Message))
	}

	if !res.ShouldReload {
		return shared.NewExecutionError("rerun failed", nil)
	}
	return nil
}
