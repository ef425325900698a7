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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHECKS_JENKINS_GERRIT_URL", "CHECKS_JENKINS_PLUGIN_NAME", "CHECKS_JENKINS_POLICY",
		"CHECKS_JENKINS_MAX_CONCURRENCY", "CHECKS_JENKINS_REQUEST_TIMEOUT", "CHECKS_JENKINS_ADDR",
		"CHECKS_JENKINS_PROJECTS_FILE", "CHECKS_JENKINS_TRACING", "CHECKS_JENKINS_OTLP_ENDPOINT",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "checks-jenkins", cfg.Gerrit.PluginName)
	assert.Equal(t, PolicyStrict, cfg.Fetch.Policy)
	assert.Equal(t, 4, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "none", cfg.Observability.Tracing)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, `
gerrit:
  url: https://review.example.com
  username: ci-bot
  password_secret: gerrit/password
http:
  timeout: 5s
  retry_attempts: 1
  requests_per_second: 10
fetch:
  policy: lenient
  max_concurrency: 8
  demo_builds:
    - number: 1
      url: https://ci.example.com/job/demo/1/
  demo_build:
    number: 1
    building: false
    result: SUCCESS
    url: https://ci.example.com/job/demo/1/
  fallback_servers:
    - name: Internal CI
      url: https://ci.example.com
      jobs: [verify, lint]
credentials:
  - host: ci.example.com
    username: ci-bot
    token_secret: jenkins/ci.example.com/token
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://review.example.com", cfg.Gerrit.URL)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1, cfg.HTTP.RetryAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.HTTP.RetryBackoff, "zero values get defaults")
	assert.Equal(t, PolicyLenient, cfg.Fetch.Policy)
	assert.Equal(t, 8, cfg.Fetch.MaxConcurrency)
	require.Len(t, cfg.Fetch.DemoBuilds, 1)
	require.NotNil(t, cfg.Fetch.DemoBuild)
	assert.Equal(t, "SUCCESS", cfg.Fetch.DemoBuild.Result)
	require.Len(t, cfg.Fetch.FallbackServers, 1)
	assert.Equal(t, []string{"verify", "lint"}, cfg.Fetch.FallbackServers[0].Jobs)
	require.Len(t, cfg.Credentials, 1)

	hc := cfg.HTTPClientConfig(nil)
	assert.Equal(t, 10.0, hc.RequestsPerSecond)
	assert.True(t, hc.CookieJar)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHECKS_JENKINS_GERRIT_URL", "https://gerrit.example.org")
	t.Setenv("CHECKS_JENKINS_POLICY", "LENIENT")
	t.Setenv("CHECKS_JENKINS_MAX_CONCURRENCY", "2")
	t.Setenv("CHECKS_JENKINS_ADDR", "127.0.0.1:9000")
	t.Setenv("LOG_LEVEL", "DEBUG")

	path := writeFile(t, "fetch:\n  policy: strict\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gerrit.example.org", cfg.Gerrit.URL)
	assert.Equal(t, PolicyLenient, cfg.Fetch.Policy)
	assert.Equal(t, 2, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		var cfgErr *checkserrors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "config_file", cfgErr.Key)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "fetch: [unterminated"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "fetch:\n  policy: sometimes\n"))
		var cfgErr *checkserrors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "validation", cfgErr.Key)
		assert.Contains(t, err.Error(), "fetch.policy")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		errText string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{
			name:    "gerrit url without scheme",
			modify:  func(c *Config) { c.Gerrit.URL = "review.example.com" },
			errText: "gerrit.url",
		},
		{
			name:    "password secret without username",
			modify:  func(c *Config) { c.Gerrit.PasswordSecret = "gerrit/password" },
			errText: "gerrit.username",
		},
		{
			name:    "zero concurrency",
			modify:  func(c *Config) { c.Fetch.MaxConcurrency = 0 },
			errText: "fetch.max_concurrency",
		},
		{
			name:    "fallback server without url",
			modify:  func(c *Config) { c.Fetch.FallbackServers = []ServerEntry{{Name: "x"}} },
			errText: "fetch.fallback_servers[0].url",
		},
		{
			name:    "credential without secret",
			modify:  func(c *Config) { c.Credentials = []CredentialConfig{{Host: "ci.example.com"}} },
			errText: "credentials[0].token_secret",
		},
		{
			name:    "otlp without endpoint",
			modify:  func(c *Config) { c.Observability.Tracing = "otlp-http" },
			errText: "observability.otlp_endpoint",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			errText: "log.format",
		},
		{
			name:    "negative repository bound",
			modify:  func(c *Config) { c.Server.MaxRepositories = -1 },
			errText: "server.max_repositories",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.HTTP.RetryAttempts = -1 },
			errText: "http:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errText == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

type staticSecrets map[string]string

func (s staticSecrets) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func TestResolveCredentials(t *testing.T) {
	cfg := Default()
	cfg.Gerrit.URL = "https://review.example.com:8443"
	cfg.Gerrit.Username = "reviewer"
	cfg.Gerrit.PasswordSecret = "gerrit/password"
	cfg.Credentials = []CredentialConfig{{Host: "ci.example.com", Username: "bot", TokenSecret: "ci/token"}}

	creds, err := cfg.ResolveCredentials(context.Background(), staticSecrets{
		"gerrit/password": "pw",
		"ci/token":        "tok",
	})
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "review.example.com:8443", creds[0].Host)
	assert.Equal(t, "pw", creds[0].Token)
	assert.Equal(t, "ci.example.com", creds[1].Host)
	assert.Equal(t, "tok", creds[1].Token)

	_, err = cfg.ResolveCredentials(context.Background(), staticSecrets{"gerrit/password": "pw"})
	var cfgErr *checkserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "credentials[0].token_secret", cfgErr.Key)
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, "", DefaultPath())

	cfgDir := filepath.Join(dir, "checks-jenkins")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("{}"), 0o600))

	assert.Equal(t, filepath.Join(cfgDir, "config.yaml"), DefaultPath())
}
