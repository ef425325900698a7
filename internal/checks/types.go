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

import "context"

// ChangeCoordinates identifies one patchset of a change.
type ChangeCoordinates struct {
	Repository string `json:"repository"`
	Change     int    `json:"change"`
	Patchset   int    `json:"patchset"`
}

// CIServer is one Jenkins server and the job names to inspect on it.
type CIServer struct {
	Name string   `json:"name" yaml:"name"`
	URL  string   `json:"url" yaml:"url"`
	Jobs []string `json:"jobs" yaml:"jobs"`
}

// RunStatus is the lifecycle state of a check run.
type RunStatus string

const (
	StatusRunnable  RunStatus = "RUNNABLE"
	StatusRunning   RunStatus = "RUNNING"
	StatusCompleted RunStatus = "COMPLETED"
)

// Category classifies a check result.
type Category string

const (
	CategorySuccess Category = "SUCCESS"
	CategoryError   Category = "ERROR"
	CategoryWarning Category = "WARNING"
)

// LinkIcon names an icon from the checks UI.
type LinkIcon string

const IconExternal LinkIcon = "EXTERNAL"

type Link struct {
	URL     string   `json:"url"`
	Primary bool     `json:"primary"`
	Icon    LinkIcon `json:"icon"`
}

type CheckResult struct {
	Category Category `json:"category"`
	Summary  string   `json:"summary"`
	Links    []Link   `json:"links"`
}

// Action is a button on a check run. URL is the target passed to the
// action handler when the button is pressed.
type Action struct {
	Name     string `json:"name"`
	Tooltip  string `json:"tooltip,omitempty"`
	Primary  bool   `json:"primary"`
	Summary  bool   `json:"summary"`
	Disabled bool   `json:"disabled"`
	URL      string `json:"url"`
}

// CheckRun is one build of one job, normalized for the checks UI.
type CheckRun struct {
	Change    int           `json:"change"`
	Patchset  int           `json:"patchset"`
	Attempt   int           `json:"attempt"`
	CheckName string        `json:"checkName"`
	CheckLink string        `json:"checkLink"`
	Status    RunStatus     `json:"status"`
	Results   []CheckResult `json:"results"`
	Actions   []Action      `json:"actions,omitempty"`
}

// ResponseCode is the overall outcome of a fetch.
type ResponseCode string

const (
	ResponseOK    ResponseCode = "OK"
	ResponseError ResponseCode = "ERROR"
)

// FetchResponse is what a Provider returns. Runs is never nil.
type FetchResponse struct {
	ResponseCode ResponseCode `json:"responseCode"`
	Runs         []CheckRun   `json:"runs"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// ActionResult is the answer to an action button press.
type ActionResult struct {
	Message      string `json:"message"`
	ShouldReload bool   `json:"shouldReload,omitempty"`
}

// Provider produces check runs for a change. Implementations never fail;
// problems are reported through FetchResponse.
type Provider interface {
	Fetch(ctx context.Context, coords ChangeCoordinates) FetchResponse
}

func okResponse(runs []CheckRun) FetchResponse {
	if runs == nil {
		runs = []CheckRun{}
	}
	return FetchResponse{ResponseCode: ResponseOK, Runs: runs}
}

func errorResponse(message string) FetchResponse {
	return FetchResponse{ResponseCode: ResponseError, Runs: []CheckRun{}, ErrorMessage: message}
}
