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

// Package server exposes the checks adapter over HTTP: the per-project
// config view, the checks view, the rerun action, health and metrics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tombee/checks-jenkins/internal/gerrit"
	ilog "github.com/tombee/checks-jenkins/internal/log"
)

// writeJSON writes a JSON response with the given status code and data.
// If encoding fails, it logs the error.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", ilog.Error(err))
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeGerritJSON writes data the way the Gerrit REST API does, behind the
// XSSI guard line.
func writeGerritJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(gerrit.XSSIPrefix + "\n"))
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", ilog.Error(err))
	}
}
