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

// Package credentials manages the secrets referenced by token_secret and
// password_secret.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombee/checks-jenkins/internal/commands/shared"
	"github.com/tombee/checks-jenkins/internal/secrets"
)

// ResolverFactory builds the secret resolver. Tests replace it.
var ResolverFactory = secrets.NewDefaultResolver

// NewCommand creates the credentials command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage CI and Gerrit credentials",
		Long: `Store API tokens and passwords referenced from the configuration file.

Secrets are looked up in priority order:
  1. Environment variables (CHECKS_JENKINS_SECRET_<KEY>, read-only)
  2. System keychain

Examples:
  checks-jenkins credentials set jenkins/ci.example.com/token
  echo "$TOKEN" | checks-jenkins credentials set jenkins/ci.example.com/token
  checks-jenkins credentials delete jenkins/ci.example.com/token
  checks-jenkins credentials backends`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newDeleteCommand())
	cmd.AddCommand(newBackendsCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret",
		Long: `Store a secret in the keychain.

The value is read from standard input when it is piped, otherwise from a
hidden prompt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := validateKey(key); err != nil {
				return shared.NewConfigError(err.Error(), nil)
			}

			value, err := readValue(cmd)
			if err != nil {
				return shared.NewExecutionError("failed to read secret value", err)
			}
			if value == "" {
				return shared.NewConfigError("secret value cannot be empty", nil)
			}

			if err := ResolverFactory().Set(cmd.Context(), key, value, backend); err != nil {
				return shared.NewExecutionError("failed to store secret", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), map[string]string{"key": key, "status": "stored"})
			}
			cmd.Println(shared.RenderOK(fmt.Sprintf("Stored %s", key)))
			cmd.Println(shared.RenderInfo(fmt.Sprintf("Environment override: %s", secrets.EnvName(key))))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "keychain", "Target backend")

	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := validateKey(key); err != nil {
				return shared.NewConfigError(err.Error(), nil)
			}

			err := ResolverFactory().Delete(cmd.Context(), key)
			if errors.Is(err, secrets.ErrSecretNotFound) {
				return shared.NewExecutionError(fmt.Sprintf("secret %q not found", key), nil)
			}
			if err != nil {
				return shared.NewExecutionError("failed to delete secret", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), map[string]string{"key": key, "status": "deleted"})
			}
			cmd.Println(shared.RenderOK(fmt.Sprintf("Deleted %s", key)))
			return nil
		},
	}
}

type backendInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	ReadOnly bool   `json:"read_only"`
}

func newBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List available secret backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []backendInfo
			for _, b := range ResolverFactory().Backends() {
				infos = append(infos, backendInfo{
					Name:     b.Name(),
					Priority: b.Priority(),
					ReadOnly: isReadOnly(cmd.Context(), b),
				})
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), infos)
			}

			for _, info := range infos {
				mode := "read-write"
				if info.ReadOnly {
					mode = "read-only"
				}
				cmd.Printf("%s  %s\n", shared.RenderLabel(fmt.Sprintf("%-10s", info.Name)), mode)
			}
			return nil
		},
	}
}

// isReadOnly checks with an empty delete; read-only backends refuse before
// touching storage.
func isReadOnly(ctx context.Context, b secrets.SecretBackend) bool {
	return errors.Is(b.Delete(ctx, "__checks_jenkins_readonly_check__"), secrets.ErrReadOnlyBackend)
}

func readValue(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter secret value (hidden): ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("secret key cannot be empty")
	}
	if strings.ContainsAny(key, " \t\n") {
		return fmt.Errorf("secret key %q must not contain whitespace", key)
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("secret key %q must not start or end with '/'", key)
	}
	return nil
}
