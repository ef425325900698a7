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
Package secrets resolves the credentials used to talk to Gerrit and to
Jenkins servers.

Configuration never holds a token directly. It names a secret key such as
"jenkins/ci.example.com/token", and a Resolver looks that key up across its
backends in priority order:

  - env (100): CHECKS_JENKINS_SECRET_<KEY>, slashes, dots and dashes mapped to underscores
  - keychain (50): the system keyring under the "checks-jenkins" service

The env backend is read-only. Keys are written to the keychain with the
"credentials set" command.
*/
package secrets
