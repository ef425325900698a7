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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/checks-jenkins/internal/jenkins"
	ilog "github.com/tombee/checks-jenkins/internal/log"
	"github.com/tombee/checks-jenkins/internal/tracing"
)

// changeSegment is the per-change job path segment for testCoords.
const changeSegment = "79%252F346479%252F3"

type fakeBuild struct {
	number   int
	building bool
	result   string
	status   int
	delay    time.Duration
}

// fakeJenkins serves job listings and build details for testCoords.
type fakeJenkins struct {
	server *httptest.Server

	mu       sync.Mutex
	jobs     map[string][]fakeBuild
	failJobs map[string]int
	requests int
}

func newFakeJenkins(t *testing.T) *fakeJenkins {
	t.Helper()
	f := &fakeJenkins{
		jobs:     make(map[string][]fakeBuild),
		failJobs: make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeJenkins) addJob(job string, builds ...fakeBuild) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job] = builds
}

func (f *fakeJenkins) failJob(job string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failJobs[job] = status
}

func (f *fakeJenkins) jobPath(job string) string {
	return fmt.Sprintf("/job/%s/job/%s/", job, changeSegment)
}

func (f *fakeJenkins) buildURL(job string, number int) string {
	return fmt.Sprintf("%s%s%d/", f.server.URL, f.jobPath(job), number)
}

func (f *fakeJenkins) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()

	f.mu.Lock()
	f.requests++
	jobs := f.jobs
	failJobs := f.failJobs
	f.mu.Unlock()

	for job, builds := range jobs {
		if path == f.jobPath(job)+"api/json" {
			if status, ok := failJobs[job]; ok {
				http.Error(w, "job failure", status)
				return
			}
			refs := make([]jenkins.BuildRef, 0, len(builds))
			for _, b := range builds {
				refs = append(refs, jenkins.BuildRef{Number: b.number, URL: f.buildURL(job, b.number)})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"builds": refs})
			return
		}

		for _, b := range builds {
			if path != fmt.Sprintf("%s%d/api/json", f.jobPath(job), b.number) {
				continue
			}
			if b.delay > 0 {
				select {
				case <-time.After(b.delay):
				case <-r.Context().Done():
					return
				}
			}
			if b.status != 0 {
				http.Error(w, "build failure", b.status)
				return
			}
			detail := jenkins.BuildDetail{Number: b.number, Building: b.building, URL: f.buildURL(job, b.number)}
			if b.result != "" {
				detail.Result = jenkins.StringPtr(b.result)
			}
			_ = json.NewEncoder(w).Encode(detail)
			return
		}
	}
	http.NotFound(w, r)
}

func staticSource(servers ...CIServer) ConfigSource {
	return ConfigSourceFunc(func(ctx context.Context, repository string) ([]CIServer, error) {
		return servers, nil
	})
}

func newTestFetcher(source ConfigSource, clientOpts []jenkins.Option, opts ...FetcherOption) *Fetcher {
	resolver := newTestResolver(source)
	client := jenkins.NewClient(append([]jenkins.Option{jenkins.WithLogger(ilog.Discard())}, clientOpts...)...)
	return NewFetcher(resolver, client, append([]FetcherOption{WithLogger(ilog.Discard())}, opts...)...)
}

type runKey struct {
	name    string
	attempt int
}

func keys(runs []CheckRun) []runKey {
	out := make([]runKey, 0, len(runs))
	for _, r := range runs {
		out = append(out, runKey{r.CheckName, r.Attempt})
	}
	return out
}

func TestFetch_PreservesEncounterOrder(t *testing.T) {
	first := newFakeJenkins(t)
	first.addJob("verify",
		fakeBuild{number: 3, building: true, delay: 30 * time.Millisecond},
		fakeBuild{number: 2, result: "FAILURE", delay: 10 * time.Millisecond},
		fakeBuild{number: 1, result: "SUCCESS"},
	)
	first.addJob("lint", fakeBuild{number: 8, result: "ABORTED"})

	second := newFakeJenkins(t)
	second.addJob("e2e", fakeBuild{number: 1})

	f := newTestFetcher(staticSource(
		CIServer{Name: "first", URL: first.server.URL, Jobs: []string{"verify", "lint"}},
		CIServer{Name: "second", URL: second.server.URL + "/", Jobs: []string{"e2e"}},
	), nil, WithMaxConcurrency(8))

	resp := f.Fetch(context.Background(), testCoords)
	require.Equal(t, ResponseOK, resp.ResponseCode, resp.ErrorMessage)

	assert.Equal(t, []runKey{
		{"verify", 3}, {"verify", 2}, {"verify", 1},
		{"lint", 8},
		{"e2e", 1},
	}, keys(resp.Runs))

	assert.Equal(t, StatusRunning, resp.Runs[0].Status)
	assert.Equal(t, CategoryError, resp.Runs[1].Results[0].Category)
	assert.Equal(t, CategorySuccess, resp.Runs[2].Results[0].Category)
	assert.Equal(t, CategoryWarning, resp.Runs[3].Results[0].Category)
	assert.Equal(t, StatusRunnable, resp.Runs[4].Status)
	assert.Equal(t, first.buildURL("verify", 3), resp.Runs[0].CheckLink)
}

func TestFetch_Idempotent(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify",
		fakeBuild{number: 2, result: "SUCCESS", delay: 5 * time.Millisecond},
		fakeBuild{number: 1, result: "FAILURE"},
	)
	ci.addJob("lint", fakeBuild{number: 4, building: true})

	f := newTestFetcher(staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"verify", "lint"}}), nil)

	first := f.Fetch(context.Background(), testCoords)
	second := f.Fetch(context.Background(), testCoords)

	require.Equal(t, ResponseOK, first.ResponseCode)
	assert.Equal(t, first, second)
}

func TestFetch_EmptyConfig(t *testing.T) {
	f := newTestFetcher(staticSource(), nil)

	resp := f.Fetch(context.Background(), testCoords)

	assert.Equal(t, ResponseOK, resp.ResponseCode)
	assert.NotNil(t, resp.Runs)
	assert.Empty(t, resp.Runs)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"responseCode":"OK","runs":[]}`, string(body))
}

func TestFetch_BuildDetailFailure(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify",
		fakeBuild{number: 2, result: "SUCCESS"},
		fakeBuild{number: 1, status: http.StatusInternalServerError},
	)

	f := newTestFetcher(staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"verify"}}), nil)

	resp := f.Fetch(context.Background(), testCoords)

	assert.Equal(t, ResponseError, resp.ResponseCode)
	assert.NotEmpty(t, resp.ErrorMessage)
	assert.Contains(t, resp.ErrorMessage, "500")
	assert.NotNil(t, resp.Runs)
	assert.Empty(t, resp.Runs)
}

func TestFetch_JobListingFailureIsSkipped(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify", fakeBuild{number: 1, result: "SUCCESS"})
	ci.addJob("broken", fakeBuild{number: 1, result: "SUCCESS"})
	ci.failJob("broken", http.StatusNotFound)

	f := newTestFetcher(staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"broken", "missing", "verify"}}), nil)

	resp := f.Fetch(context.Background(), testCoords)

	require.Equal(t, ResponseOK, resp.ResponseCode, resp.ErrorMessage)
	assert.Equal(t, []runKey{{"verify", 1}}, keys(resp.Runs))
}

func TestFetch_LenientPolicy(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify", fakeBuild{number: 5, status: http.StatusBadGateway})
	ci.addJob("broken")
	ci.failJob("broken", http.StatusInternalServerError)

	demo := []jenkins.BuildRef{{Number: 9, URL: ci.buildURL("verify", 5)}}
	policy := jenkins.LenientPolicy(demo, nil)

	f := newTestFetcher(
		staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"verify", "broken"}}),
		[]jenkins.Option{jenkins.WithPolicy(policy)},
	)

	resp := f.Fetch(context.Background(), testCoords)
	require.Equal(t, ResponseOK, resp.ResponseCode, resp.ErrorMessage)

	// verify: live listing, substituted detail filled from the reference.
	// broken: demo listing, whose detail also fails and is substituted.
	assert.Equal(t, []runKey{{"verify", 5}, {"broken", 9}}, keys(resp.Runs))
	for _, run := range resp.Runs {
		assert.Equal(t, StatusRunnable, run.Status)
		assert.Equal(t, ci.buildURL("verify", 5), run.CheckLink)
	}
}

func TestFetch_LenientPolicyWithDemoBuild(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify", fakeBuild{number: 5, status: http.StatusBadGateway})

	demoBuild := &jenkins.BuildDetail{Number: 42, Result: jenkins.StringPtr("SUCCESS"), URL: "https://ci.example.com/job/demo/42/"}
	f := newTestFetcher(
		staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"verify"}}),
		[]jenkins.Option{jenkins.WithPolicy(jenkins.LenientPolicy(nil, demoBuild))},
	)

	resp := f.Fetch(context.Background(), testCoords)
	require.Equal(t, ResponseOK, resp.ResponseCode)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, 42, resp.Runs[0].Attempt)
	assert.Equal(t, "verify", resp.Runs[0].CheckName)
	assert.Equal(t, StatusCompleted, resp.Runs[0].Status)
}

func TestFetch_ConfigFailureWithoutFallback(t *testing.T) {
	source := &countingSource{err: fmt.Errorf("gerrit unavailable")}
	client := jenkins.NewClient(jenkins.WithLogger(ilog.Discard()))
	f := NewFetcher(newTestResolver(source, WithoutFallback()), client, WithLogger(ilog.Discard()))

	resp := f.Fetch(context.Background(), testCoords)
	assert.Equal(t, ResponseError, resp.ResponseCode)
	assert.NotEmpty(t, resp.ErrorMessage)
	assert.NotNil(t, resp.Runs)

	source.err = nil
	resp = f.Fetch(context.Background(), testCoords)
	assert.Equal(t, ResponseOK, resp.ResponseCode)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestFetch_ResolvesConfigOnce(t *testing.T) {
	source := &countingSource{servers: []CIServer{}}
	f := newTestFetcher(source, nil)

	for i := 0; i < 3; i++ {
		f.Fetch(context.Background(), testCoords)
	}
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestFetch_RecoversPanic(t *testing.T) {
	f := newTestFetcher(ConfigSourceFunc(func(ctx context.Context, repository string) ([]CIServer, error) {
		panic("config source exploded")
	}), nil)

	var resp FetchResponse
	require.NotPanics(t, func() {
		resp = f.Fetch(context.Background(), testCoords)
	})
	assert.Equal(t, ResponseError, resp.ResponseCode)
	assert.Contains(t, resp.ErrorMessage, "config source exploded")
	assert.NotNil(t, resp.Runs)
}

func TestFetch_HungBuildTimesOut(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify", fakeBuild{number: 1, delay: time.Minute})

	f := newTestFetcher(
		staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"verify"}}),
		[]jenkins.Option{jenkins.WithRequestTimeout(50 * time.Millisecond)},
	)

	start := time.Now()
	resp := f.Fetch(context.Background(), testCoords)

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, ResponseError, resp.ResponseCode)
	assert.Contains(t, resp.ErrorMessage, "did not answer")
}

func TestFetch_ConcurrencyLimit(t *testing.T) {
	ci := newFakeJenkins(t)
	var jobs []string
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("job%d", i)
		jobs = append(jobs, name)
		ci.addJob(name, fakeBuild{number: 1, result: "SUCCESS"})
	}

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	limited := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)
		resp, err := http.DefaultTransport.RoundTrip(req)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return resp, err
	})}

	f := newTestFetcher(
		staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: jobs}),
		[]jenkins.Option{jenkins.WithHTTPClient(limited)},
		WithMaxConcurrency(2),
	)

	resp := f.Fetch(context.Background(), testCoords)
	require.Equal(t, ResponseOK, resp.ResponseCode, resp.ErrorMessage)
	assert.Len(t, resp.Runs, 6)
	assert.LessOrEqual(t, peak, 2)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestFetch_Telemetry(t *testing.T) {
	ci := newFakeJenkins(t)
	ci.addJob("verify", fakeBuild{number: 1, result: "SUCCESS"})

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := tracing.NewMetrics(mp)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	resolver := newTestResolver(staticSource(CIServer{Name: "ci", URL: ci.server.URL, Jobs: []string{"verify"}}),
		WithResolverTracer(tracer), WithResolverMetrics(metrics))
	client := jenkins.NewClient(jenkins.WithLogger(ilog.Discard()), jenkins.WithTracer(tracer), jenkins.WithMetrics(metrics))
	f := NewFetcher(resolver, client, WithLogger(ilog.Discard()), WithTracer(tracer), WithMetrics(metrics))

	resp := f.Fetch(context.Background(), testCoords)
	require.Equal(t, ResponseOK, resp.ResponseCode)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"checks.ResolveConfig", "jenkins.FetchJobInfo", "jenkins.FetchBuildInfo", "checks.Fetch"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "checks_jenkins_fetch_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			v, _ := sum.DataPoints[0].Attributes.Value("response_code")
			assert.Equal(t, "OK", v.AsString())
			found = true
		}
	}
	assert.True(t, found, "fetch counter not recorded")
}
