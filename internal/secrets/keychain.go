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
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainBackendPriority is the priority for keychain backend.
	KeychainBackendPriority = 50

	// KeychainService is the service name used for keychain entries.
	KeychainService = "checks-jenkins"
)

// KeychainBackend stores secrets in the system keychain (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager).
type KeychainBackend struct {
	available bool
}

// NewKeychainBackend checks the keyring once; a locked or missing service
// marks the backend unavailable.
func NewKeychainBackend() *KeychainBackend {
	backend := &KeychainBackend{available: true}

	_, err := keyring.Get(KeychainService, "__checks_jenkins_availability_test__")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		backend.available = false
	}

	return backend
}

func (k *KeychainBackend) Name() string {
	return "keychain"
}

func (k *KeychainBackend) Get(ctx context.Context, key string) (string, error) {
	if !k.available {
		return "", fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}

	value, err := keyring.Get(KeychainService, key)
	if err != nil {
		return "", k.wrap(key, err)
	}
	return value, nil
}

func (k *KeychainBackend) Set(ctx context.Context, key string, value string) error {
	if !k.available {
		return fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}
	if err := keyring.Set(KeychainService, key, value); err != nil {
		return k.wrap(key, err)
	}
	return nil
}

func (k *KeychainBackend) Delete(ctx context.Context, key string) error {
	if !k.available {
		return fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}
	if err := keyring.Delete(KeychainService, key); err != nil {
		return k.wrap(key, err)
	}
	return nil
}

func (k *KeychainBackend) Available() bool {
	return k.available
}

func (k *KeychainBackend) Priority() int {
	return KeychainBackendPriority
}

func (k *KeychainBackend) wrap(key string, err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	case isKeychainUnavailableError(err):
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, err.Error())
	default:
		return fmt.Errorf("keychain error: %w", err)
	}
}

// isKeychainUnavailableError matches the platform messages for a locked or
// inaccessible keychain.
func isKeychainUnavailableError(err error) bool {
	errStr := strings.ToLower(err.Error())

	for _, indicator := range []string{
		"locked",
		"cannot access",
		"permission denied",
		"failed to unlock",
		"user interaction required",
		"secret service",
		"dbus",
		"user canceled",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
