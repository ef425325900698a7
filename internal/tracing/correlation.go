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

package tracing

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// CorrelationID identifies one inbound request across the CI calls it fans out to.
// It uses RFC 4122 UUID format (36 characters).
type CorrelationID string

type correlationKeyType struct{}

var correlationKey = correlationKeyType{}

const (
	// HeaderCorrelationID is the primary header for correlation ID.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is accepted on inbound requests for compatibility.
	HeaderRequestID = "X-Request-ID"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// NewCorrelationID generates a new unique correlation ID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}

func (c CorrelationID) String() string {
	return string(c)
}

// IsValid checks if the correlation ID is a valid UUID format.
func (c CorrelationID) IsValid() bool {
	return uuidRegex.MatchString(string(c))
}

// ToContext adds the correlation ID to the context.
func ToContext(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// FromContext retrieves the correlation ID from the context, generating a
// new one when none is present.
func FromContext(ctx context.Context) CorrelationID {
	if id, ok := ctx.Value(correlationKey).(CorrelationID); ok {
		return id
	}
	return NewCorrelationID()
}

// FromContextOrEmpty retrieves the correlation ID from the context.
// Returns empty string if no correlation ID is found.
func FromContextOrEmpty(ctx context.Context) CorrelationID {
	if id, ok := ctx.Value(correlationKey).(CorrelationID); ok {
		return id
	}
	return ""
}

// ExtractFromRequest reads X-Correlation-ID, then X-Request-ID.
func ExtractFromRequest(r *http.Request) (CorrelationID, bool) {
	if id := r.Header.Get(HeaderCorrelationID); id != "" {
		return CorrelationID(id), true
	}
	if id := r.Header.Get(HeaderRequestID); id != "" {
		return CorrelationID(id), true
	}
	return "", false
}

// CorrelationMiddleware attaches a correlation ID to every request context
// and echoes it in the response headers. Inbound IDs that are not UUIDs are
// replaced rather than rejected.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := ExtractFromRequest(r)
		if !found || !id.IsValid() {
			id = NewCorrelationID()
		}

		r = r.WithContext(ToContext(r.Context(), id))
		w.Header().Set(HeaderCorrelationID, id.String())

		next.ServeHTTP(w, r)
	})
}
