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
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tombee/checks-jenkins/internal/checks"
)

// DefaultRegistrySize bounds the repositories with a live fetcher.
const DefaultRegistrySize = 512

// FetcherFactory builds the fetcher for one repository.
type FetcherFactory func(repository string) *checks.Fetcher

// Registry keeps one fetcher per repository so each repository resolves
// its CI config once and never sees another repository's config. The
// least recently used repository is dropped once the registry is full;
// its next request resolves config again.
type Registry struct {
	factory FetcherFactory
	trusted []checks.CIServer

	mu       sync.Mutex
	fetchers *lru.Cache[string, *checks.Fetcher]
}

// NewRegistry creates a registry holding up to DefaultRegistrySize
// repositories. URLs under the trusted servers are always accepted by
// OwnsURL.
func NewRegistry(factory FetcherFactory, trusted ...checks.CIServer) *Registry {
	return NewBoundedRegistry(factory, DefaultRegistrySize, trusted...)
}

// NewBoundedRegistry is NewRegistry with an explicit size. Sizes below 1
// mean DefaultRegistrySize.
func NewBoundedRegistry(factory FetcherFactory, size int, trusted ...checks.CIServer) *Registry {
	if size < 1 {
		size = DefaultRegistrySize
	}
	fetchers, err := lru.New[string, *checks.Fetcher](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Registry{
		factory:  factory,
		trusted:  trusted,
		fetchers: fetchers,
	}
}

// Get returns the repository's fetcher, creating it on first use.
func (r *Registry) Get(repository string) *checks.Fetcher {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.fetchers.Get(repository)
	if !ok {
		f = r.factory(repository)
		r.fetchers.Add(repository, f)
	}
	return f
}

// Reset drops every fetcher; the next Get resolves config again.
func (r *Registry) Reset() {
	r.fetchers.Purge()
}

// Len returns the number of repositories with a live fetcher.
func (r *Registry) Len() int {
	return r.fetchers.Len()
}

// OwnsURL reports whether rawURL belongs to a trusted server or to a server
// resolved by a repository still in the registry.
func (r *Registry) OwnsURL(rawURL string) bool {
	if underServers(r.trusted, rawURL) {
		return true
	}

	for _, f := range r.fetchers.Values() {
		if f.Resolver().OwnsURL(rawURL) {
			return true
		}
	}
	return false
}

func underServers(servers []checks.CIServer, rawURL string) bool {
	for _, s := range servers {
		base := strings.TrimSuffix(s.URL, "/")
		if base != "" && strings.HasPrefix(rawURL, base+"/") {
			return true
		}
	}
	return false
}
