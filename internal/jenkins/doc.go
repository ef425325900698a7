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

// Package jenkins talks to the Jenkins JSON API for per-change pipelines.
//
// Jobs are addressed with the nested multibranch layout used by the Gerrit
// trigger: {server}/job/{job}/job/{shard}%2F{change}%2F{patchset}, where the
// branch segment is itself percent-encoded once more on the wire.
//
// The two read operations differ in how they fail. FetchJobInfo never
// returns an error; a broken listing is replaced according to the client's
// FallbackPolicy and reported through JobInfoResult.Outcome. FetchBuildInfo
// returns the error unless the policy carries a substitute build.
package jenkins
