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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/checks-jenkins/internal/jenkins"
)

var testCoords = ChangeCoordinates{Repository: "gerrit", Change: 346479, Patchset: 3}

func TestConvert(t *testing.T) {
	const buildURL = "https://ci.example.com/job/verify/job/79%252F346479%252F3/12/"

	tests := []struct {
		name         string
		building     bool
		result       *string
		wantStatus   RunStatus
		wantCategory Category
		wantSummary  string
	}{
		{
			name:         "success",
			result:       jenkins.StringPtr("SUCCESS"),
			wantStatus:   StatusCompleted,
			wantCategory: CategorySuccess,
			wantSummary:  "Result: SUCCESS",
		},
		{
			name:         "failure",
			result:       jenkins.StringPtr("FAILURE"),
			wantStatus:   StatusCompleted,
			wantCategory: CategoryError,
			wantSummary:  "Result: FAILURE",
		},
		{
			name:         "aborted",
			result:       jenkins.StringPtr("ABORTED"),
			wantStatus:   StatusCompleted,
			wantCategory: CategoryWarning,
			wantSummary:  "Result: ABORTED",
		},
		{
			name:         "unstable",
			result:       jenkins.StringPtr("UNSTABLE"),
			wantStatus:   StatusCompleted,
			wantCategory: CategoryWarning,
			wantSummary:  "Result: UNSTABLE",
		},
		{
			name:         "result wins over building flag",
			building:     true,
			result:       jenkins.StringPtr("SUCCESS"),
			wantStatus:   StatusCompleted,
			wantCategory: CategorySuccess,
			wantSummary:  "Result: SUCCESS",
		},
		{
			name:       "running",
			building:   true,
			wantStatus: StatusRunning,
		},
		{
			name:       "not started",
			wantStatus: StatusRunnable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			build := jenkins.BuildDetail{Number: 12, Building: tt.building, Result: tt.result, URL: buildURL}
			run := Convert("Gerrit-verifier-pipeline", testCoords, build)

			assert.Equal(t, tt.wantStatus, run.Status)
			assert.Equal(t, 346479, run.Change)
			assert.Equal(t, 3, run.Patchset)
			assert.Equal(t, 12, run.Attempt)
			assert.Equal(t, "Gerrit-verifier-pipeline", run.CheckName)
			assert.Equal(t, buildURL, run.CheckLink)
			require.NotNil(t, run.Results)

			if tt.wantStatus != StatusCompleted {
				assert.Empty(t, run.Results)
				return
			}

			require.Len(t, run.Results, 1)
			res := run.Results[0]
			assert.Equal(t, tt.wantCategory, res.Category)
			assert.Equal(t, tt.wantSummary, res.Summary)
			assert.Equal(t, []Link{{URL: buildURL + "/console", Primary: true, Icon: IconExternal}}, res.Links)
		})
	}
}

func TestConvert_RerunAction(t *testing.T) {
	run := Convert("verify", testCoords, jenkins.BuildDetail{Number: 1, URL: "https://ci.example.com/job/verify/1/"})

	require.Len(t, run.Actions, 1)
	action := run.Actions[0]
	assert.Equal(t, RerunActionName, action.Name)
	assert.True(t, action.Primary)
	assert.False(t, action.Disabled)
	assert.Equal(t, "https://ci.example.com/job/verify/1/rebuild", action.URL)

	noURL := Convert("verify", testCoords, jenkins.BuildDetail{Number: 1})
	assert.Empty(t, noURL.Actions)
}

func TestConvert_DoesNotShareResult(t *testing.T) {
	result := "SUCCESS"
	build := jenkins.BuildDetail{Number: 1, Result: &result, URL: "u"}

	run := Convert("verify", testCoords, build)
	result = "FAILURE"

	assert.Equal(t, "Result: SUCCESS", run.Results[0].Summary)
}
