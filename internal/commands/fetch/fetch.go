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

// Package fetch implements the fetch command.
package fetch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/checks-jenkins/internal/checks"
	"github.com/tombee/checks-jenkins/internal/commands/shared"
	"github.com/tombee/checks-jenkins/internal/tracing"
)

type options struct {
	server string
	jobs   []string
	policy string
}

// NewCommand creates the fetch command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "fetch <repository> <change> <patchset>",
		Short: "Fetch the check runs of a patchset",
		Long: `Fetch resolves the CI servers configured for the repository, reads the
per-change Jenkins jobs and prints one check run per build.

With --server the config lookup is skipped and the given jobs are read
from that server directly.`,
		Example: `  checks-jenkins fetch gerrit 346479 3
  checks-jenkins fetch gerrit 346479 3 --server https://gerrit-ci.gerritforge.com --job Gerrit-verifier-pipeline --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "CI server URL to read instead of the configured servers")
	cmd.Flags().StringSliceVar(&opts.jobs, "job", nil, "Job name on --server (repeatable)")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Fallback policy override: strict or lenient")

	return cmd
}

func run(cmd *cobra.Command, args []string, opts options) error {
	coords, err := ParseCoordinates(args)
	if err != nil {
		return err
	}
	if opts.server != "" && len(opts.jobs) == 0 {
		return shared.NewExecutionError("--server requires at least one --job", nil)
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	if opts.policy != "" {
		cfg.Fetch.Policy = strings.ToLower(opts.policy)
		if err := cfg.Validate(); err != nil {
			return shared.NewConfigError("invalid --policy", err)
		}
	}

	ctx := tracing.ToContext(cmd.Context(), tracing.NewCorrelationID())
	app, err := shared.NewApp(ctx, cfg, shared.AppOptions{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	source := app.ConfigSource()
	if opts.server != "" {
		source = staticSource(checks.CIServer{Name: opts.server, URL: opts.server, Jobs: opts.jobs})
	}

	resp := app.NewFetcher(source).Fetch(ctx, coords)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		if err := shared.EmitJSON(out, resp); err != nil {
			return shared.NewExecutionError("failed to write output", err)
		}
	} else {
		Render(out, coords, resp)
	}

	if resp.ResponseCode == checks.ResponseError {
		return shared.NewChecksError(resp.ErrorMessage)
	}
	return nil
}

// ParseCoordinates reads <repository> <change> <patchset>.
func ParseCoordinates(args []string) (checks.ChangeCoordinates, error) {
	change, err := strconv.Atoi(args[1])
	if err != nil || change <= 0 {
		return checks.ChangeCoordinates{}, shared.NewExecutionError(fmt.Sprintf("invalid change number %q", args[1]), nil)
	}
	patchset, err := strconv.Atoi(args[2])
	if err != nil || patchset <= 0 {
		return checks.ChangeCoordinates{}, shared.NewExecutionError(fmt.Sprintf("invalid patchset number %q", args[2]), nil)
	}
	return checks.ChangeCoordinates{Repository: args[0], Change: change, Patchset: patchset}, nil
}

func staticSource(servers ...checks.CIServer) checks.ConfigSource {
	return checks.ConfigSourceFunc(func(_ context.Context, _ string) ([]checks.CIServer, error) {
		return servers, nil
	})
}

// Render prints a human-readable view of resp.
func Render(w io.Writer, coords checks.ChangeCoordinates, resp checks.FetchResponse) {
	fmt.Fprintln(w, shared.Header.Render(fmt.Sprintf("Checks for %s %d/%d", coords.Repository, coords.Change, coords.Patchset)))

	if resp.ResponseCode == checks.ResponseError {
		fmt.Fprintln(w, shared.RenderError(resp.ErrorMessage))
		return
	}
	if len(resp.Runs) == 0 {
		fmt.Fprintln(w, shared.Muted.Render("No check runs."))
		return
	}

	for _, run := range resp.Runs {
		label := fmt.Sprintf("%s #%d", shared.Bold.Render(run.CheckName), run.Attempt)
		fmt.Fprintln(w, renderStatus(run)+" "+label+" "+shared.Muted.Render(string(run.Status)))
		for _, res := range run.Results {
			fmt.Fprintf(w, "    %s\n", renderSummary(res))
			for _, link := range res.Links {
				fmt.Fprintf(w, "    %s %s\n", shared.RenderLabel("console:"), link.URL)
			}
		}
		if run.CheckLink != "" && len(run.Results) == 0 {
			fmt.Fprintf(w, "    %s %s\n", shared.RenderLabel("build:"), run.CheckLink)
		}
	}
}

func renderSummary(res checks.CheckResult) string {
	switch res.Category {
	case checks.CategoryWarning:
		return shared.RenderWarn(res.Summary)
	case checks.CategoryError:
		return shared.RenderError(res.Summary)
	default:
		return res.Summary
	}
}

func renderStatus(run checks.CheckRun) string {
	switch run.Status {
	case checks.StatusRunning:
		return shared.StatusInfo.Render(shared.SymbolRunning)
	case checks.StatusRunnable:
		return shared.Muted.Render(shared.SymbolInfo)
	}
	if len(run.Results) == 0 {
		return shared.Muted.Render(shared.SymbolInfo)
	}
	switch run.Results[0].Category {
	case checks.CategorySuccess:
		return shared.StatusOK.Render(shared.SymbolOK)
	case checks.CategoryError:
		return shared.StatusError.Render(shared.SymbolError)
	default:
		return shared.StatusWarn.Render(shared.SymbolWarn)
	}
}
