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

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tombee/checks-jenkins/internal/checks"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
)

const maxActionBody = 64 << 10

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	Version    string
	PluginName string

	Registry *Registry
	Projects *ProjectStore
	Rerunner *checks.Rerunner

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// Router wraps an http.ServeMux with correlation and request logging.
type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	config  RouterConfig
	logger  *slog.Logger
}

// NewRouter creates the router with all endpoints registered.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		mux:    http.NewServeMux(),
		config: cfg,
		logger: ilog.WithComponent(logger, "server"),
	}

	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	r.mux.HandleFunc("GET /projects/{project}/{view}", r.handleProjectConfig)
	r.mux.HandleFunc("GET /changes/{project}/{change}/revisions/{patchset}/checks", r.handleChecks)
	r.mux.HandleFunc("POST /actions/rerun", r.handleRerun)
	if cfg.MetricsHandler != nil {
		r.mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	// Correlation runs first so the request log carries the ID.
	r.handler = tracing.CorrelationMiddleware(ilog.HTTPMiddleware(r.logger)(r.mux))

	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}


func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": r.config.Version,
	}
	if r.config.Registry != nil {
		status["repositories"] = r.config.Registry.Len()
	}
	if r.config.Projects != nil && r.config.Projects.Err() != nil {
		status["status"] = "degraded"
		status["projects_error"] = r.config.Projects.Err().Error()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleProjectConfig serves GET /projects/{project}/{plugin}~config.
func (r *Router) handleProjectConfig(w http.ResponseWriter, req *http.Request) {
	project := req.PathValue("project")
	if req.PathValue("view") != r.config.PluginName+"~config" {
		http.NotFound(w, req)
		return
	}

	if r.config.Projects == nil {
		writeGerritJSON(w, http.StatusOK, []checks.CIServer{})
		return
	}

	servers, err := r.config.Projects.Lookup(project)
	if err != nil {
		r.logger.ErrorContext(req.Context(), "Error fetching Jenkins config",
			ilog.RepositoryKey, project,
			"error", err,
		)
		http.Error(w, "Error fetching Jenkins config", http.StatusInternalServerError)
		return
	}

	writeGerritJSON(w, http.StatusOK, servers)
}

// handleChecks serves the check runs of one patchset. Fetch failures are
// reported inside the body, so the status is 200 whenever the request
// itself was valid.
func (r *Router) handleChecks(w http.ResponseWriter, req *http.Request) {
	change, err := strconv.Atoi(req.PathValue("change"))
	if err != nil || change <= 0 {
		writeError(w, http.StatusBadRequest, "change must be a positive integer")
		return
	}
	patchset, err := strconv.Atoi(req.PathValue("patchset"))
	if err != nil || patchset <= 0 {
		writeError(w, http.StatusBadRequest, "patchset must be a positive integer")
		return
	}
	if r.config.Registry == nil {
		writeError(w, http.StatusServiceUnavailable, "checks are not configured")
		return
	}

	coords := checks.ChangeCoordinates{
		Repository: req.PathValue("project"),
		Change:     change,
		Patchset:   patchset,
	}
	resp := r.config.Registry.Get(coords.Repository).Fetch(req.Context(), coords)
	writeJSON(w, http.StatusOK, resp)
}

type rerunRequest struct {
	URL string `json:"url"`
}

// handleRerun triggers the action URL of a check run.
func (r *Router) handleRerun(w http.ResponseWriter, req *http.Request) {
	if r.config.Rerunner == nil || r.config.Registry == nil {
		writeError(w, http.StatusServiceUnavailable, "actions are not configured")
		return
	}

	var body rerunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxActionBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := url.Parse(body.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if !r.ownsURL(body.URL) {
		r.logger.WarnContext(req.Context(), "rejected rerun for unknown server", "url", body.URL)
		writeError(w, http.StatusBadRequest, "url does not belong to a configured CI server")
		return
	}

	writeJSON(w, http.StatusOK, r.config.Rerunner.Trigger(req.Context(), body.URL))
}

func (r *Router) ownsURL(rawURL string) bool {
	if r.config.Registry.OwnsURL(rawURL) {
		return true
	}
	return r.config.Projects != nil && underServers(r.config.Projects.Servers(), rawURL)
}
