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

// Policy names.
const (
	PolicyStrict  = "strict"
	PolicyLenient = "lenient"
)

// FallbackPolicy decides what replaces a failed read.
type FallbackPolicy struct {
	Name string

	// JobListing replaces a job listing that could not be fetched.
	JobListing JobListing

	// BuildDetail replaces a build detail that could not be fetched. Nil
	// means the failure is returned to the caller. A substitute with an
	// empty URL takes its number and URL from the build reference.
	BuildDetail *BuildDetail
}

// StrictPolicy substitutes an empty listing and propagates build failures.
func StrictPolicy() FallbackPolicy {
	return FallbackPolicy{
		Name:       PolicyStrict,
		JobListing: JobListing{Exists: false, Builds: []BuildRef{}},
	}
}

// LenientPolicy substitutes the given demo builds for a failed listing and
// demoBuild for a failed build detail. A nil demoBuild yields a not-started
// build carrying the reference's number and URL.
func LenientPolicy(demoBuilds []BuildRef, demoBuild *BuildDetail) FallbackPolicy {
	builds := make([]BuildRef, len(demoBuilds))
	copy(builds, demoBuilds)

	detail := &BuildDetail{}
	if demoBuild != nil {
		d := *demoBuild
		detail = &d
	}

	return FallbackPolicy{
		Name:        PolicyLenient,
		JobListing:  JobListing{Exists: len(builds) > 0, Builds: builds},
		BuildDetail: detail,
	}
}

// PropagatesBuildErrors reports whether FetchBuildInfo returns errors.
func (p FallbackPolicy) PropagatesBuildErrors() bool {
	return p.BuildDetail == nil
}

func (p FallbackPolicy) jobListing() JobListing {
	builds := make([]BuildRef, len(p.JobListing.Builds))
	copy(builds, p.JobListing.Builds)
	return JobListing{Exists: p.JobListing.Exists, Builds: builds}
}

func (p FallbackPolicy) buildDetail() BuildDetail {
	d := *p.BuildDetail
	if d.Result != nil {
		r := *d.Result
		d.Result = &r
	}
	return d
}
