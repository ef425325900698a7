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

// Package errors defines the typed errors shared across the checks adapter.
//
// Errors that reach the review UI as an errorMessage implement
// UserVisibleError so callers can render a short, human-readable message
// instead of a raw wrapped chain.
package errors

import (
	"fmt"
	"time"
)

// ValidationError represents invalid input such as a malformed change
// coordinate or a rerun URL that does not belong to a configured CI server.
type ValidationError struct {
	// Field identifies which input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "project", "job", "build")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// CIError represents a failed request against a CI server.
type CIError struct {
	// Server is the CI server base URL or name, when known
	Server string

	// URL is the request URL that failed
	URL string

	// StatusCode is the HTTP status code (0 for transport failures)
	StatusCode int

	// Message is the human-readable error message
	Message string

	// IsHTML is set when the server answered with an HTML error page
	IsHTML bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *CIError) Error() string {
	msg := "CI server error"
	if e.Server != "" {
		msg = fmt.Sprintf("CI server %s error", e.Server)
	}

	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}

	msg = fmt.Sprintf("%s: %s", msg, e.Message)

	if e.IsHTML {
		msg += " - received HTML error page"
	}

	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CIError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *CIError) IsUserVisible() bool {
	return true
}

// UserMessage implements UserVisibleError.
func (e *CIError) UserMessage() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("Fetching %s failed with status %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("Fetching %s failed: %s", e.URL, e.Message)
}

// Suggestion implements UserVisibleError.
func (e *CIError) Suggestion() string {
	switch e.StatusCode {
	case 401, 403:
		return "Check the credentials configured for this CI server."
	case 404:
		return "Check that the job exists on the CI server."
	case 0:
		return "Check that the CI server is reachable."
	default:
		return ""
	}
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "gerrit.url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "build detail fetch")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *TimeoutError) IsUserVisible() bool {
	return true
}

// UserMessage implements UserVisibleError.
func (e *TimeoutError) UserMessage() string {
	return fmt.Sprintf("The CI server did not answer within %v", e.Duration)
}

// Suggestion implements UserVisibleError.
func (e *TimeoutError) Suggestion() string {
	return "Retry later or raise fetch.request_timeout."
}
