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

package checks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/checks-jenkins/internal/gerrit"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// countingSource returns servers, or err when set, and counts lookups.
type countingSource struct {
	calls   atomic.Int32
	servers []CIServer
	err     error
}

func (s *countingSource) FetchConfig(ctx context.Context, repository string) ([]CIServer, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.servers, nil
}

func newTestResolver(source ConfigSource, opts ...ResolverOption) *Resolver {
	return NewResolver(source, append([]ResolverOption{WithResolverLogger(ilog.Discard())}, opts...)...)
}

func TestResolve_FallbackOnFailure(t *testing.T) {
	source := &countingSource{err: errors.New("connection refused")}
	r := newTestResolver(source)

	res, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Cause, source.err)
	assert.Equal(t, []CIServer{{
		Name: "Gerrit CI",
		URL:  "https://gerrit-ci.gerritforge.com",
		Jobs: []string{"Gerrit-verifier-pipeline"},
	}}, res.Servers)

	again, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
	assert.Equal(t, res.Servers, again.Servers)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestResolve_CachesRemote(t *testing.T) {
	source := &countingSource{servers: []CIServer{{Name: "ci", URL: "https://ci.example.com", Jobs: []string{"verify"}}}}
	r := newTestResolver(source)

	for i := 0; i < 3; i++ {
		res, err := r.Resolve(context.Background(), "gerrit")
		require.NoError(t, err)
		assert.Equal(t, source.servers, res.Servers)
	}
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, source.servers, r.Cached())
}

func TestResolve_EmptyRemoteIsNotNil(t *testing.T) {
	r := newTestResolver(&countingSource{})

	res, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)
	assert.NotNil(t, res.Servers)
	assert.Empty(t, res.Servers)
	assert.Equal(t, SourceRemote, res.Source)
}

func TestResolve_NilSource(t *testing.T) {
	r := newTestResolver(nil)

	res, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.ErrorIs(t, res.Cause, ErrNoConfigSource)
	assert.Equal(t, DefaultFallbackServers(), res.Servers)
}

func TestResolve_CustomFallback(t *testing.T) {
	custom := []CIServer{{Name: "internal", URL: "https://jenkins.internal", Jobs: []string{"a", "b"}}}
	r := newTestResolver(&countingSource{err: errors.New("boom")}, WithFallbackServers(custom))

	res, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)
	assert.Equal(t, custom, res.Servers)
}

func TestResolve_WithoutFallback(t *testing.T) {
	source := &countingSource{err: errors.New("boom")}
	r := newTestResolver(source, WithoutFallback())

	_, err := r.Resolve(context.Background(), "gerrit")
	require.Error(t, err)

	var cfgErr *checkserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, source.err)
	assert.Nil(t, r.Cached())

	source.err = nil
	source.servers = []CIServer{{Name: "ci", URL: "https://ci.example.com"}}
	res, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestResolve_ConcurrentFirstCalls(t *testing.T) {
	source := &countingSource{servers: []CIServer{{Name: "ci", URL: "https://ci.example.com", Jobs: []string{"verify"}}}}
	r := newTestResolver(source)

	var wg sync.WaitGroup
	results := make([][]CIServer, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), "gerrit")
			if err == nil {
				results[i] = res.Servers
			}
		}()
	}
	wg.Wait()

	for _, servers := range results {
		assert.Equal(t, source.servers, servers)
	}
}

func TestResolver_OwnsURL(t *testing.T) {
	r := newTestResolver(&countingSource{servers: []CIServer{{Name: "ci", URL: "https://ci.example.com/"}}})

	assert.True(t, r.OwnsURL("https://gerrit-ci.gerritforge.com/job/x/1/rebuild"), "fallback servers are always trusted")
	assert.False(t, r.OwnsURL("https://ci.example.com/job/x/1/rebuild"), "nothing resolved yet")

	_, err := r.Resolve(context.Background(), "gerrit")
	require.NoError(t, err)

	assert.True(t, r.OwnsURL("https://ci.example.com/job/x/1/rebuild"))
	assert.False(t, r.OwnsURL("https://ci.example.com.evil.test/job/x/1/rebuild"))
	assert.False(t, r.OwnsURL("https://other.example.com/rebuild"))

	strict := newTestResolver(nil, WithoutFallback())
	assert.False(t, strict.OwnsURL("https://gerrit-ci.gerritforge.com/job/x/1/rebuild"))
}

func TestGerritSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/plugins%2Fchecks-jenkins/checks-jenkins~config", r.URL.EscapedPath())
		_, _ = w.Write([]byte(")]}'\n" + `[{"name":"ci","url":"https://ci.example.com","jobs":["verify","lint"]}]`))
	}))
	defer server.Close()

	client := gerrit.NewClient(server.URL, "checks-jenkins", gerrit.WithLogger(ilog.Discard()))
	r := newTestResolver(GerritSource(client))

	res, err := r.Resolve(context.Background(), "plugins/checks-jenkins")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, []CIServer{{Name: "ci", URL: "https://ci.example.com", Jobs: []string{"verify", "lint"}}}, res.Servers)
}
