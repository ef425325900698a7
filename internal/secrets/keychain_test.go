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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeychainBackend_RoundTrip(t *testing.T) {
	keyring.MockInit()

	backend := NewKeychainBackend()
	require.True(t, backend.Available())
	assert.Equal(t, "keychain", backend.Name())
	assert.Equal(t, KeychainBackendPriority, backend.Priority())

	ctx := context.Background()
	const key = "jenkins/ci.example.com/token"

	_, err := backend.Get(ctx, key)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, backend.Set(ctx, key, "abc123"))

	value, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)

	require.NoError(t, backend.Delete(ctx, key))
	assert.ErrorIs(t, backend.Delete(ctx, key), ErrSecretNotFound)
}

func TestKeychainBackend_Unavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: connection refused"))
	t.Cleanup(keyring.MockInit)

	backend := NewKeychainBackend()
	assert.False(t, backend.Available())

	_, err := backend.Get(context.Background(), "any")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestIsKeychainUnavailableError(t *testing.T) {
	assert.True(t, isKeychainUnavailableError(errors.New("The keychain is LOCKED")))
	assert.True(t, isKeychainUnavailableError(errors.New("failed to unlock correct collection")))
	assert.False(t, isKeychainUnavailableError(errors.New("item not valid")))
}
