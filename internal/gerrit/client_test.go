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

package gerrit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ilog "github.com/tombee/checks-jenkins/internal/log"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

func TestConfigURL(t *testing.T) {
	c := NewClient("https://review.example.com/", "checks-jenkins")
	assert.Equal(t, "https://review.example.com/projects/plugins%2Fchecks/checks-jenkins~config", c.ConfigURL("plugins/checks"))

	auth := NewClient("https://review.example.com/r", "checks-jenkins", WithAuthenticated(true))
	assert.Equal(t, "https://review.example.com/r/a/projects/gerrit/checks-jenkins~config", auth.ConfigURL("gerrit"))
}

func TestFetchConfig(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(")]}'\n" + `[{"name":"Gerrit CI","url":"https://gerrit-ci.gerritforge.com","jobs":["Gerrit-verifier-pipeline"]}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "checks-jenkins", WithLogger(ilog.Discard()))
	servers, err := c.FetchConfig(context.Background(), "plugins/checks")
	require.NoError(t, err)

	assert.Equal(t, "/projects/plugins%2Fchecks/checks-jenkins~config", gotPath)
	require.Len(t, servers, 1)
	assert.Equal(t, "Gerrit CI", servers[0].Name)
	assert.Equal(t, []string{"Gerrit-verifier-pipeline"}, servers[0].Jobs)
}

func TestFetchConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			check: func(t *testing.T, err error) {
				var nf *checkserrors.NotFoundError
				assert.True(t, errors.As(err, &nf))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Error fetching Jenkins config", http.StatusInternalServerError)
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "HTTP 500")
				assert.Contains(t, err.Error(), "Error fetching Jenkins config")
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(")]}'\n{\"name\":"))
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decoding response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient(server.URL, "checks-jenkins", WithLogger(ilog.Discard()))
			servers, err := c.FetchConfig(context.Background(), "gerrit")
			require.Error(t, err)
			assert.Nil(t, servers)
			tt.check(t, err)
		})
	}
}

func TestFetchConfig_EmptyArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(")]}'\n[]"))
	}))
	defer server.Close()

	servers, err := NewClient(server.URL, "p", WithLogger(ilog.Discard())).FetchConfig(context.Background(), "repo")
	require.NoError(t, err)
	assert.NotNil(t, servers)
	assert.Empty(t, servers)
}

func TestStripXSSI(t *testing.T) {
	assert.Equal(t, "\n[]", string(StripXSSI([]byte(")]}'\n[]"))))
	assert.Equal(t, "[]", string(StripXSSI([]byte("[]"))))
	assert.Equal(t, "\n{}", string(StripXSSI([]byte("  )]}'\n{}"))))
}
