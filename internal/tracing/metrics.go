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
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CI request kinds recorded by RecordCIRequest and RecordFallback.
const (
	KindJob     = "job"
	KindBuild   = "build"
	KindTrigger = "trigger"
	KindConfig  = "config"
)

// Metrics holds the instruments for checks fetching. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	fetchTotal    metric.Int64Counter
	fetchDuration metric.Float64Histogram
	ciRequests    metric.Int64Counter
	ciLatency     metric.Float64Histogram
	fallbacks     metric.Int64Counter
	configLookups metric.Int64Counter

	inFlight atomic.Int64
}

// NewMetrics registers the instruments on the given meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(InstrumentationName)
	m := &Metrics{}

	var err error

	m.fetchTotal, err = meter.Int64Counter(
		"checks_jenkins_fetch_total",
		metric.WithDescription("Checks fetches by response code"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	m.fetchDuration, err = meter.Float64Histogram(
		"checks_jenkins_fetch_duration_seconds",
		metric.WithDescription("End-to-end checks fetch duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ciRequests, err = meter.Int64Counter(
		"checks_jenkins_ci_requests_total",
		metric.WithDescription("Requests sent to CI servers by kind and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.ciLatency, err = meter.Float64Histogram(
		"checks_jenkins_ci_request_duration_seconds",
		metric.WithDescription("CI server request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.fallbacks, err = meter.Int64Counter(
		"checks_jenkins_fallbacks_total",
		metric.WithDescription("Substituted listings, builds and configs"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}

	m.configLookups, err = meter.Int64Counter(
		"checks_jenkins_config_lookups_total",
		metric.WithDescription("Configuration resolutions by source"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"checks_jenkins_fetches_in_flight",
		metric.WithDescription("Checks fetches currently running"),
		metric.WithUnit("{fetch}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(m.inFlight.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// FetchStarted marks a fetch as running. Call the returned func with the
// response code once it completes.
func (m *Metrics) FetchStarted(ctx context.Context) func(responseCode string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.inFlight.Add(1)
	return func(responseCode string) {
		m.inFlight.Add(-1)
		attrs := metric.WithAttributes(attribute.String("response_code", responseCode))
		m.fetchTotal.Add(ctx, 1, attrs)
		m.fetchDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// RecordCIRequest counts one request to a CI server.
func (m *Metrics) RecordCIRequest(ctx context.Context, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ciRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
	m.ciLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordFallback counts a substituted value.
func (m *Metrics) RecordFallback(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordConfigLookup counts a configuration resolution; source is one of
// cache, remote or fallback.
func (m *Metrics) RecordConfigLookup(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.configLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
