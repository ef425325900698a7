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

// Package urls implements the urls command, which prints the Jenkins URLs
// derived from change coordinates without contacting any server.
package urls

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/checks-jenkins/internal/commands/fetch"
	"github.com/tombee/checks-jenkins/internal/commands/shared"
	"github.com/tombee/checks-jenkins/internal/jenkins"
)

// URLs is the JSON output of the command.
type URLs struct {
	Shard    string `json:"shard"`
	JobAPI   string `json:"job_api"`
	Build    string `json:"build,omitempty"`
	BuildAPI string `json:"build_api,omitempty"`
	Console  string `json:"console,omitempty"`
	Rebuild  string `json:"rebuild,omitempty"`
}

// NewCommand creates the urls command
func NewCommand() *cobra.Command {
	var buildURL string

	cmd := &cobra.Command{
		Use:   "urls <server-url> <job> <change> <patchset>",
		Short: "Print the Jenkins URLs for a change",
		Example: `  checks-jenkins urls https://gerrit-ci.gerritforge.com Gerrit-verifier-pipeline 346479 3
  checks-jenkins urls https://ci.example.com verify 5 1 --build https://ci.example.com/job/verify/job/05%252F5%252F1/2/`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := fetch.ParseCoordinates([]string{"", args[2], args[3]})
			if err != nil {
				return err
			}

			u := Build(args[0], args[1], coords.Change, coords.Patchset, buildURL)

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), u)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("shard:    "), u.Shard)
			fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("job api:  "), u.JobAPI)
			if u.Build != "" {
				fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("build api:"), u.BuildAPI)
				fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("console:  "), u.Console)
				fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("rebuild:  "), u.Rebuild)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&buildURL, "build", "", "Build URL to derive the build API, console and rebuild URLs from")

	return cmd
}

// Build computes every URL for the inputs. Build URLs are only set when
// buildURL is not empty.
func Build(serverURL, job string, change, patchset int, buildURL string) URLs {
	u := URLs{
		Shard:  jenkins.Shard(change),
		JobAPI: jenkins.JobAPIURL(serverURL, job, change, patchset),
	}
	if buildURL != "" {
		u.Build = buildURL
		u.BuildAPI = jenkins.BuildAPIURL(buildURL)
		u.Console = jenkins.ConsoleURL(buildURL)
		u.Rebuild = jenkins.RebuildURL(buildURL)
	}
	return u
}
