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
	"fmt"
	"sort"
)

// Resolver queries a chain of SecretBackends in priority order.
type Resolver struct {
	backends []SecretBackend
}

// NewResolver drops unavailable backends and sorts the rest by priority.
func NewResolver(backends ...SecretBackend) *Resolver {
	available := make([]SecretBackend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Priority() > available[j].Priority()
	})

	return &Resolver{backends: available}
}

// NewDefaultResolver returns the env and keychain chain.
func NewDefaultResolver() *Resolver {
	return NewResolver(NewEnvBackend(), NewKeychainBackend())
}

// Get returns the first successful lookup. A non-NotFound error from any
// backend is reported in preference to a plain miss.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	if len(r.backends) == 0 {
		return "", fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	var lastErr error
	for _, backend := range r.backends {
		value, err := backend.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrSecretNotFound) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", key, lastErr)
	}
	return "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Set stores a secret in the named backend, or the first writable one.
func (r *Resolver) Set(ctx context.Context, key, value, backendName string) error {
	for _, backend := range r.backends {
		if backendName != "" && backend.Name() != backendName {
			continue
		}
		err := backend.Set(ctx, key, value)
		if errors.Is(err, ErrReadOnlyBackend) && backendName == "" {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to set secret in %s: %w", backend.Name(), err)
		}
		return nil
	}

	if backendName != "" {
		return fmt.Errorf("backend %q not found or unavailable", backendName)
	}
	return fmt.Errorf("%w: no writable backend available", ErrBackendUnavailable)
}

// Delete removes a secret from every writable backend that holds it.
func (r *Resolver) Delete(ctx context.Context, key string) error {
	deleted := false
	for _, backend := range r.backends {
		err := backend.Delete(ctx, key)
		if errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrReadOnlyBackend) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to delete secret from %s: %w", backend.Name(), err)
		}
		deleted = true
	}

	if !deleted {
		return fmt.Errorf("%w: %q", ErrSecretNotFound, key)
	}
	return nil
}

// Backends returns the available backends in priority order.
func (r *Resolver) Backends() []SecretBackend {
	return r.backends
}
