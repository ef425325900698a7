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

package jenkins

// JobListing is the build list of one per-change job.
type JobListing struct {
	// Exists is false when the job could not be read.
	Exists bool       `json:"exists"`
	Builds []BuildRef `json:"builds"`
}

// BuildRef identifies one build under a job.
type BuildRef struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// BuildDetail is the state of one build. Result is nil while the build has
// not finished.
type BuildDetail struct {
	Number   int     `json:"number"`
	Building bool    `json:"building"`
	Result   *string `json:"result"`
	URL      string  `json:"url"`
}

// HasResult reports whether the build reached a terminal result.
func (b BuildDetail) HasResult() bool {
	return b.Result != nil
}

// Outcome tells whether a value came from the CI server or was substituted.
type Outcome int

const (
	OutcomeLive Outcome = iota
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLive:
		return "live"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// JobInfoResult is the outcome of FetchJobInfo. Cause is set when Outcome is
// OutcomeFallback.
type JobInfoResult struct {
	Listing JobListing
	Outcome Outcome
	Cause   error
}

// BuildInfoResult is the outcome of FetchBuildInfo.
type BuildInfoResult struct {
	Detail  BuildDetail
	Outcome Outcome
	Cause   error
}

// StringPtr is a convenience for literal build results.
func StringPtr(s string) *string {
	return &s
}
