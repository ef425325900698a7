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

package checks

import (
	"context"
	"log/slog"

	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// Triggerer issues the request behind an action URL.
type Triggerer interface {
	Trigger(ctx context.Context, actionURL string) error
}

// Rerunner handles the Rerun action.
type Rerunner struct {
	client Triggerer
	logger *slog.Logger
}

// NewRerunner creates a Rerunner. A nil logger uses slog.Default.
func NewRerunner(client Triggerer, logger *slog.Logger) *Rerunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rerunner{client: client, logger: ilog.WithComponent(logger, "rerun")}
}

// Trigger requests a new build through actionURL. It always returns a
// result; failures are described in the message.
func (r *Rerunner) Trigger(ctx context.Context, actionURL string) ActionResult {
	logger := ilog.WithCorrelationID(r.logger, tracing.FromContext(ctx).String())

	if err := r.client.Trigger(ctx, actionURL); err != nil {
		logger.WarnContext(ctx, "rerun failed", "url", actionURL, "error", err)
		return ActionResult{Message: "Triggering the run failed: " + checkserrors.Message(err)}
	}

	logger.InfoContext(ctx, "rerun triggered", "url", actionURL)
	return ActionResult{Message: "Run triggered.", ShouldReload: true}
}
