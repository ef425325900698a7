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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvBackendPriority is the highest priority so the environment can override.
	EnvBackendPriority = 100

	envSecretPrefix = "CHECKS_JENKINS_SECRET_"
)

var envKeyReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_", ":", "_")

// EnvBackend provides read-only access to secrets via environment variables.
type EnvBackend struct {
	lookup func(string) (string, bool)
}

// NewEnvBackend creates a new environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{lookup: os.LookupEnv}
}

func (e *EnvBackend) Name() string {
	return "env"
}

// Get retrieves CHECKS_JENKINS_SECRET_<KEY>.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	envKey := EnvName(key)
	if value, ok := e.lookup(envKey); ok && value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s not set", ErrSecretNotFound, envKey)
}

func (e *EnvBackend) Set(ctx context.Context, key string, value string) error {
	return ErrReadOnlyBackend
}

func (e *EnvBackend) Delete(ctx context.Context, key string) error {
	return ErrReadOnlyBackend
}

func (e *EnvBackend) Available() bool {
	return true
}

func (e *EnvBackend) Priority() int {
	return EnvBackendPriority
}

// EnvName maps a secret key to its environment variable.
// Example: "jenkins/ci.example.com/token" -> "CHECKS_JENKINS_SECRET_JENKINS_CI_EXAMPLE_COM_TOKEN"
func EnvName(key string) string {
	return envSecretPrefix + strings.ToUpper(envKeyReplacer.Replace(key))
}
