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
	"github.com/tombee/checks-jenkins/internal/jenkins"
)

// Jenkins result strings with a dedicated category.
const (
	resultSuccess = "SUCCESS"
	resultFailure = "FAILURE"
)

// RerunActionName is the name of the action attached to every run.
const RerunActionName = "Rerun"

// Convert maps one Jenkins build of jobName to a check run. The check name
// is always jobName, never anything from the build record.
func Convert(jobName string, coords ChangeCoordinates, build jenkins.BuildDetail) CheckRun {
	run := CheckRun{
		Change:    coords.Change,
		Patchset:  coords.Patchset,
		Attempt:   build.Number,
		CheckName: jobName,
		CheckLink: build.URL,
		Results:   []CheckResult{},
	}

	switch {
	case build.HasResult():
		run.Status = StatusCompleted
		run.Results = []CheckResult{{
			Category: categorize(*build.Result),
			Summary:  "Result: " + *build.Result,
			Links: []Link{{
				URL:     jenkins.ConsoleURL(build.URL),
				Primary: true,
				Icon:    IconExternal,
			}},
		}}
	case build.Building:
		run.Status = StatusRunning
	default:
		run.Status = StatusRunnable
	}

	if build.URL != "" {
		run.Actions = []Action{rerunAction(build.URL)}
	}

	return run
}

func categorize(result string) Category {
	switch result {
	case resultSuccess:
		return CategorySuccess
	case resultFailure:
		return CategoryError
	default:
		return CategoryWarning
	}
}

func rerunAction(buildURL string) Action {
	return Action{
		Name:    RerunActionName,
		Tooltip: "Trigger a new build with the same parameters",
		Primary: true,
		URL:     jenkins.RebuildURL(buildURL),
	}
}
