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

package shared

import (
	"errors"
	"fmt"
	"os"

	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitFailed        = 1
	ExitInvalidConfig = 2
	// ExitChecksError means the fetch completed with an ERROR response.
	ExitChecksError = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for command failures
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for configuration problems
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

// NewChecksError reports an ERROR fetch response
func NewChecksError(msg string) *ExitError {
	return &ExitError{
		Code:    ExitChecksError,
		Message: msg,
	}
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailed
}

// HandleExitError prints err and exits with its code
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	printUserVisibleSuggestion(err)
	os.Exit(ExitCode(err))
}

// printUserVisibleSuggestion prints the suggestion of the first
// UserVisibleError in the chain, if any.
func printUserVisibleSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(checkserrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if suggestion := userErr.Suggestion(); suggestion != "" {
					fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", suggestion)
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
