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

/*
Package cli provides the root command for the checks-jenkins CLI.

The command tree is:

	checks-jenkins
	├── fetch         Fetch check runs for a patchset
	├── rerun         Trigger a run's Rerun action
	├── urls          Print the Jenkins URLs for a patchset
	├── serve         Serve check runs over HTTP
	├── credentials   Manage CI and Gerrit credentials
	└── version       Show version

Individual commands live in the internal/commands subpackages. Persistent
flags are stored in internal/commands/shared.
*/
package cli
