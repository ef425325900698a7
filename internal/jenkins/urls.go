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

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	jobTreeQuery   = "api/json?tree=builds[number,url]"
	buildTreeQuery = "api/json?tree=number,result,building,url"
)

// Shard returns the last two decimal digits of a change number, zero-padded.
func Shard(change int) string {
	if change < 0 {
		change = -change
	}
	return fmt.Sprintf("%02d", change%100)
}

// JobAPIURL builds the job listing URL for one change and patchset.
// A trailing slash on serverURL is dropped.
func JobAPIURL(serverURL, jobName string, change, patchset int) string {
	return fmt.Sprintf("%s/job/%s/job/%s%%252F%d%%252F%d/%s",
		strings.TrimSuffix(serverURL, "/"),
		url.PathEscape(jobName),
		Shard(change), change, patchset,
		jobTreeQuery,
	)
}

// BuildAPIURL builds the detail URL for a build. Jenkins build URLs already
// end in a slash.
func BuildAPIURL(baseBuildURL string) string {
	return baseBuildURL + buildTreeQuery
}

// ConsoleURL is the console log page of a build.
func ConsoleURL(buildURL string) string {
	return buildURL + "/console"
}

// RebuildURL is the action URL that retriggers a build.
func RebuildURL(buildURL string) string {
	if !strings.HasSuffix(buildURL, "/") {
		buildURL += "/"
	}
	return buildURL + "rebuild"
}
