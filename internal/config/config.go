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

// Package config loads the adapter's configuration from YAML and the environment.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
	"github.com/tombee/checks-jenkins/pkg/httpclient"
)

// Fetch policies.
const (
	PolicyStrict  = "strict"
	PolicyLenient = "lenient"
)

// Config is the complete adapter configuration.
type Config struct {
	Gerrit        GerritConfig        `yaml:"gerrit"`
	HTTP          HTTPConfig          `yaml:"http"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Credentials   []CredentialConfig  `yaml:"credentials,omitempty"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GerritConfig points at the review system that serves per-repository CI config.
type GerritConfig struct {
	// URL is the review server base URL. Empty means the config lookup
	// always falls back.
	URL string `yaml:"url,omitempty"`

	// PluginName scopes the config view: /projects/{repo}/{plugin}~config.
	PluginName string `yaml:"plugin_name"`

	Username string `yaml:"username,omitempty"`

	// PasswordSecret is a secret key, never the password itself.
	PasswordSecret string `yaml:"password_secret,omitempty"`
}

// HTTPConfig mirrors httpclient.Config.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	UserAgent         string        `yaml:"user_agent"`
}

// FetchConfig controls the fetch pipeline.
type FetchConfig struct {
	// Policy is strict (job listing failures yield an empty listing, build
	// failures propagate) or lenient (both substitute the demo records below).
	Policy string `yaml:"policy"`

	// MaxConcurrency bounds parallel CI requests within one fetch.
	MaxConcurrency int `yaml:"max_concurrency"`

	// RequestTimeout bounds each CI request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	DemoBuilds []BuildRef    `yaml:"demo_builds,omitempty"`
	DemoBuild  *BuildRecord `yaml:"demo_build,omitempty"`

	// DisableFallbackConfig turns config lookup failures into ERROR responses.
	DisableFallbackConfig bool `yaml:"disable_fallback_config,omitempty"`

	// FallbackServers replaces the built-in fallback entry when set.
	FallbackServers []ServerEntry `yaml:"fallback_servers,omitempty"`
}

// BuildRef is a demo build reference used by the lenient policy.
type BuildRef struct {
	Number int    `yaml:"number"`
	URL    string `yaml:"url"`
}

// BuildRecord is a demo build detail used by the lenient policy.
type BuildRecord struct {
	Number   int    `yaml:"number"`
	Building bool   `yaml:"building"`
	Result   string `yaml:"result,omitempty"`
	URL      string `yaml:"url"`
}

// ServerEntry is one CI server with the jobs to inspect.
type ServerEntry struct {
	Name string   `yaml:"name"`
	URL  string   `yaml:"url"`
	Jobs []string `yaml:"jobs"`
}

// CredentialConfig attaches basic auth to one CI or review host.
type CredentialConfig struct {
	Host        string `yaml:"host"`
	Username    string `yaml:"username"`
	TokenSecret string `yaml:"token_secret"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ProjectsFile    string        `yaml:"projects_file,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxRepositories bounds the repositories whose fetcher and resolved
	// config are kept in memory.
	MaxRepositories int `yaml:"max_repositories"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig configures tracing export.
type ObservabilityConfig struct {
	Tracing      string `yaml:"tracing"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `yaml:"otlp_insecure,omitempty"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	hc := httpclient.DefaultConfig()
	return &Config{
		Gerrit: GerritConfig{
			PluginName: "checks-jenkins",
		},
		HTTP: HTTPConfig{
			Timeout:       hc.Timeout,
			RetryAttempts: hc.RetryAttempts,
			RetryBackoff:  hc.RetryBackoff,
			MaxBackoff:    hc.MaxBackoff,
			UserAgent:     hc.UserAgent,
		},
		Fetch: FetchConfig{
			Policy:         PolicyStrict,
			MaxConcurrency: 4,
			RequestTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxRepositories: 512,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Tracing:     "none",
			ServiceName: "checks-jenkins",
		},
	}
}

// Load reads configuration in order: defaults, YAML file, environment.
// An empty path skips the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &checkserrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &checkserrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills zero values left by a minimal file.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Gerrit.PluginName == "" {
		c.Gerrit.PluginName = d.Gerrit.PluginName
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = d.HTTP.Timeout
	}
	if c.HTTP.RetryBackoff == 0 {
		c.HTTP.RetryBackoff = d.HTTP.RetryBackoff
	}
	if c.HTTP.MaxBackoff == 0 {
		c.HTTP.MaxBackoff = d.HTTP.MaxBackoff
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = d.HTTP.UserAgent
	}
	if c.Fetch.Policy == "" {
		c.Fetch.Policy = d.Fetch.Policy
	}
	if c.Fetch.MaxConcurrency == 0 {
		c.Fetch.MaxConcurrency = d.Fetch.MaxConcurrency
	}
	if c.Fetch.RequestTimeout == 0 {
		c.Fetch.RequestTimeout = d.Fetch.RequestTimeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.MaxRepositories == 0 {
		c.Server.MaxRepositories = d.Server.MaxRepositories
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Observability.Tracing == "" {
		c.Observability.Tracing = d.Observability.Tracing
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = d.Observability.ServiceName
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("CHECKS_JENKINS_GERRIT_URL"); val != "" {
		c.Gerrit.URL = val
	}
	if val := os.Getenv("CHECKS_JENKINS_PLUGIN_NAME"); val != "" {
		c.Gerrit.PluginName = val
	}

	if val := os.Getenv("CHECKS_JENKINS_POLICY"); val != "" {
		c.Fetch.Policy = strings.ToLower(val)
	}
	if val := os.Getenv("CHECKS_JENKINS_MAX_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Fetch.MaxConcurrency = n
		}
	}
	if val := os.Getenv("CHECKS_JENKINS_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Fetch.RequestTimeout = d
		}
	}

	if val := os.Getenv("CHECKS_JENKINS_ADDR"); val != "" {
		c.Server.Addr = val
	}
	if val := os.Getenv("CHECKS_JENKINS_PROJECTS_FILE"); val != "" {
		c.Server.ProjectsFile = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}

	if val := os.Getenv("CHECKS_JENKINS_TRACING"); val != "" {
		c.Observability.Tracing = strings.ToLower(val)
	}
	if val := os.Getenv("CHECKS_JENKINS_OTLP_ENDPOINT"); val != "" {
		c.Observability.OTLPEndpoint = val
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Gerrit.URL != "" {
		if err := validateHTTPURL(c.Gerrit.URL); err != nil {
			errs = append(errs, fmt.Sprintf("gerrit.url: %v", err))
		}
	}
	if c.Gerrit.PluginName == "" {
		errs = append(errs, "gerrit.plugin_name is required")
	}
	if c.Gerrit.PasswordSecret != "" && c.Gerrit.Username == "" {
		errs = append(errs, "gerrit.username is required when gerrit.password_secret is set")
	}

	hc := c.HTTPClientConfig(nil)
	if err := hc.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("http: %v", err))
	}

	switch c.Fetch.Policy {
	case PolicyStrict, PolicyLenient:
	default:
		errs = append(errs, fmt.Sprintf("fetch.policy must be one of [strict, lenient], got %q", c.Fetch.Policy))
	}
	if c.Fetch.MaxConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("fetch.max_concurrency must be at least 1, got %d", c.Fetch.MaxConcurrency))
	}
	if c.Fetch.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("fetch.request_timeout must be positive, got %v", c.Fetch.RequestTimeout))
	}
	for i, s := range c.Fetch.FallbackServers {
		if err := validateHTTPURL(s.URL); err != nil {
			errs = append(errs, fmt.Sprintf("fetch.fallback_servers[%d].url: %v", i, err))
		}
	}

	for i, cred := range c.Credentials {
		if cred.Host == "" {
			errs = append(errs, fmt.Sprintf("credentials[%d].host is required", i))
		}
		if cred.TokenSecret == "" {
			errs = append(errs, fmt.Sprintf("credentials[%d].token_secret is required", i))
		}
	}

	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}
	if c.Server.MaxRepositories < 0 {
		errs = append(errs, fmt.Sprintf("server.max_repositories must not be negative, got %d", c.Server.MaxRepositories))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	switch c.Observability.Tracing {
	case "none", "stdout":
	case "otlp-http":
		if c.Observability.OTLPEndpoint == "" {
			errs = append(errs, "observability.otlp_endpoint is required for otlp-http tracing")
		}
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing must be one of [none, stdout, otlp-http], got %q", c.Observability.Tracing))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// HTTPClientConfig converts the http section, attaching the given credentials.
func (c *Config) HTTPClientConfig(creds []httpclient.Credential) httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.HTTP.Timeout
	hc.RetryAttempts = c.HTTP.RetryAttempts
	hc.RetryBackoff = c.HTTP.RetryBackoff
	hc.MaxBackoff = c.HTTP.MaxBackoff
	hc.RequestsPerSecond = c.HTTP.RequestsPerSecond
	hc.Burst = c.HTTP.Burst
	hc.UserAgent = c.HTTP.UserAgent
	hc.Credentials = creds
	return hc
}

// SecretGetter looks up a secret by key.
type SecretGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

// ResolveCredentials turns the credentials section into transport credentials.
// Gerrit basic auth is included when configured.
func (c *Config) ResolveCredentials(ctx context.Context, secrets SecretGetter) ([]httpclient.Credential, error) {
	var creds []httpclient.Credential

	if c.Gerrit.PasswordSecret != "" && c.Gerrit.URL != "" {
		u, err := url.Parse(c.Gerrit.URL)
		if err != nil {
			return nil, checkserrors.Wrap(err, "parsing gerrit.url")
		}
		password, err := secrets.Get(ctx, c.Gerrit.PasswordSecret)
		if err != nil {
			return nil, &checkserrors.ConfigError{Key: "gerrit.password_secret", Reason: "secret lookup failed", Cause: err}
		}
		creds = append(creds, httpclient.Credential{Host: u.Host, Username: c.Gerrit.Username, Token: password})
	}

	for i, cc := range c.Credentials {
		token, err := secrets.Get(ctx, cc.TokenSecret)
		if err != nil {
			return nil, &checkserrors.ConfigError{
				Key:    fmt.Sprintf("credentials[%d].token_secret", i),
				Reason: "secret lookup failed",
				Cause:  err,
			}
		}
		creds = append(creds, httpclient.Credential{Host: cc.Host, Username: cc.Username, Token: token})
	}

	return creds, nil
}
