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

// Package checks turns Jenkins build state into check runs for the Gerrit
// checks UI.
//
// A Fetcher resolves the CI servers configured for a repository once,
// lists the per-change job of every configured job name, reads each build
// and converts it into a CheckRun. Failures that can be recovered locally
// (config lookup, job listings) are substituted and logged; anything else
// ends the fetch with an ERROR response instead of an error value.
package checks
