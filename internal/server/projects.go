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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tombee/checks-jenkins/internal/checks"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

const defaultDebounce = 200 * time.Millisecond

// projectsFile is the on-disk layout:
//
//	projects:
//	  gerrit:
//	    - name: Gerrit CI
//	      url: https://gerrit-ci.gerritforge.com
//	      jobs: [Gerrit-verifier-pipeline]
type projectsFile struct {
	Projects map[string][]checks.CIServer `yaml:"projects"`
}

type projectSnapshot struct {
	projects map[string][]checks.CIServer
	err      error
}

// ProjectStore holds the per-project CI configuration read from a YAML
// file. A failed reload keeps the error so lookups report it.
type ProjectStore struct {
	path     string
	debounce time.Duration
	snapshot atomic.Pointer[projectSnapshot]
	logger   *slog.Logger
}

var _ checks.ConfigSource = (*ProjectStore)(nil)

// NewProjectStore loads path. An empty path yields a store with no projects.
// Load errors are kept, not returned; see Err.
func NewProjectStore(path string, logger *slog.Logger) *ProjectStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProjectStore{
		path:     path,
		debounce: defaultDebounce,
		logger:   ilog.WithComponent(logger, "projects"),
	}
	_ = s.Reload()
	return s
}

// Path returns the backing file, if any.
func (s *ProjectStore) Path() string {
	return s.path
}

// Reload re-reads the file.
func (s *ProjectStore) Reload() error {
	snap := &projectSnapshot{projects: map[string][]checks.CIServer{}}
	if s.path != "" {
		snap.projects, snap.err = loadProjects(s.path)
	}
	s.snapshot.Store(snap)

	if snap.err != nil {
		s.logger.Error("failed to load projects file", "path", s.path, "error", snap.err)
		return snap.err
	}
	s.logger.Debug("projects file loaded", "path", s.path, "projects", len(snap.projects))
	return nil
}

func loadProjects(path string) (map[string][]checks.CIServer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, checkserrors.Wrap(err, "reading projects file")
	}

	var pf projectsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, checkserrors.Wrap(err, "parsing projects file")
	}

	for project, servers := range pf.Projects {
		for i, srv := range servers {
			if srv.URL == "" {
				return nil, &checkserrors.ValidationError{
					Field:   fmt.Sprintf("projects.%s[%d].url", project, i),
					Message: "url is required",
				}
			}
			if servers[i].Jobs == nil {
				servers[i].Jobs = []string{}
			}
		}
	}
	if pf.Projects == nil {
		pf.Projects = map[string][]checks.CIServer{}
	}
	return pf.Projects, nil
}

// Err returns the error from the last load.
func (s *ProjectStore) Err() error {
	return s.snapshot.Load().err
}

// Lookup returns the servers configured for project. Unknown projects have
// none.
func (s *ProjectStore) Lookup(project string) ([]checks.CIServer, error) {
	snap := s.snapshot.Load()
	if snap.err != nil {
		return nil, snap.err
	}
	servers, ok := snap.projects[project]
	if !ok {
		return []checks.CIServer{}, nil
	}
	return servers, nil
}

// FetchConfig serves the store as a config source.
func (s *ProjectStore) FetchConfig(ctx context.Context, repository string) ([]checks.CIServer, error) {
	return s.Lookup(repository)
}

// Projects returns the configured project names, sorted.
func (s *ProjectStore) Projects() []string {
	snap := s.snapshot.Load()
	names := make([]string, 0, len(snap.projects))
	for name := range snap.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Servers returns every server of every project.
func (s *ProjectStore) Servers() []checks.CIServer {
	snap := s.snapshot.Load()
	var all []checks.CIServer
	for _, name := range s.Projects() {
		all = append(all, snap.projects[name]...)
	}
	return all
}

// Watch reloads the file whenever it changes until ctx is done, then calls
// onChange after each successful reload. The directory is watched so that
// editors replacing the file by rename are seen.
func (s *ProjectStore) Watch(ctx context.Context, onChange func()) error {
	if s.path == "" {
		return nil
	}

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", s.path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(s.debounce, func() {
					s.logger.Info("projects file changed", "path", abs)
					if s.Reload() == nil && onChange != nil {
						onChange()
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("file watcher error", "error", err)

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
