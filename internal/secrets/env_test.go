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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"gerrit/password":              "CHECKS_JENKINS_SECRET_GERRIT_PASSWORD",
		"jenkins/ci.example.com/token": "CHECKS_JENKINS_SECRET_JENKINS_CI_EXAMPLE_COM_TOKEN",
		"gerrit-ci:8080":               "CHECKS_JENKINS_SECRET_GERRIT_CI_8080",
	}
	for key, want := range tests {
		assert.Equal(t, want, EnvName(key), key)
	}
}

func TestEnvBackend_Get(t *testing.T) {
	t.Setenv("CHECKS_JENKINS_SECRET_GERRIT_PASSWORD", "hunter2")
	t.Setenv("CHECKS_JENKINS_SECRET_EMPTY", "")

	backend := NewEnvBackend()
	ctx := context.Background()

	value, err := backend.Get(ctx, "gerrit/password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)

	_, err = backend.Get(ctx, "empty")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = backend.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvBackend_ReadOnly(t *testing.T) {
	backend := NewEnvBackend()
	ctx := context.Background()

	assert.ErrorIs(t, backend.Set(ctx, "k", "v"), ErrReadOnlyBackend)
	assert.ErrorIs(t, backend.Delete(ctx, "k"), ErrReadOnlyBackend)
	assert.True(t, backend.Available())
	assert.Equal(t, EnvBackendPriority, backend.Priority())
}
