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

// Package tracing carries request correlation IDs and the OpenTelemetry
// providers used to trace and meter checks fetches.
//
// A Provider owns one tracer provider and one meter provider. Metrics are
// exported through a Prometheus registry private to the Provider, so tests
// and multiple servers in one process do not collide on the default registry.
package tracing
