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
)

var (
	// ErrSecretNotFound is returned when a secret key does not exist in the backend.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrBackendUnavailable is returned when a backend cannot be used in the current environment.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrReadOnlyBackend is returned when attempting to modify a read-only backend.
	ErrReadOnlyBackend = errors.New("backend is read-only")
)

// SecretBackend provides storage for sensitive values. Backends are queried
// in priority order by the Resolver.
type SecretBackend interface {
	// Name returns the backend identifier (e.g., "keychain", "env").
	Name() string

	// Get retrieves a secret by key. Returns ErrSecretNotFound if not present.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a secret. Returns ErrReadOnlyBackend if not supported.
	Set(ctx context.Context, key string, value string) error

	// Delete removes a secret. Returns ErrSecretNotFound if not present.
	Delete(ctx context.Context, key string) error

	// Available returns true if this backend is usable in the current environment.
	Available() bool

	// Priority returns the resolution priority (higher = checked first).
	Priority() int
}
