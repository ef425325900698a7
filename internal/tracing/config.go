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
	"fmt"
	"strings"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds observability configuration.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter selects where spans go: none, stdout or otlp-http.
	Exporter string

	// OTLPEndpoint is the host:port of the collector (otlp-http only).
	OTLPEndpoint string

	// OTLPInsecure disables TLS toward the collector.
	OTLPInsecure bool

	// PrettyPrint formats stdout spans for humans.
	PrettyPrint bool
}

// DefaultConfig returns a config with span export disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "checks-jenkins",
		Exporter:    ExporterNone,
	}
}

// Validate checks the exporter selection.
func (c Config) Validate() error {
	switch strings.ToLower(c.Exporter) {
	case "", ExporterNone, ExporterStdout:
		return nil
	case ExporterOTLPHTTP:
		if c.OTLPEndpoint == "" {
			return fmt.Errorf("otlp_endpoint is required when tracing is %q", ExporterOTLPHTTP)
		}
		return nil
	default:
		return fmt.Errorf("unknown tracing exporter %q (want none, stdout or otlp-http)", c.Exporter)
	}
}
