package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/config"
	"github.com/torosent/flywheel/internal/metrics"
	"github.com/torosent/flywheel/internal/runner"
)

func TestBuildRequestWithHeaders(t *testing.T) {
	cfg := &config.Config{
		Method:    "post",
		TargetURL: "http://example.com/api",
		Headers: map[string]string{
			"content-type": "application/json",
			"X-Run":        "42",
		},
		Body: `{"hello":"world"}`,
	}

	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	req, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}
	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.URL.String() != cfg.TargetURL {
		t.Fatalf("expected URL %s, got %s", cfg.TargetURL, req.URL.String())
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected canonical Content-Type header, got %q", req.Header.Get("Content-Type"))
	}
	if req.ContentLength != int64(len(cfg.Body)) {
		t.Fatalf("expected content length %d, got %d", len(cfg.Body), req.ContentLength)
	}

	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("expected replay body, got error: %v", err)
	}
	got, _ := io.ReadAll(replay)
	if string(got) != cfg.Body {
		t.Fatalf("expected replay body %q, got %q", cfg.Body, got)
	}

	// Headers are cloned per request.
	req.Header.Set("X-Run", "mutated")
	next, _ := builder.Build(context.Background())
	if next.Header.Get("X-Run") != "42" {
		t.Fatalf("builder headers leaked between requests")
	}
}

func TestNewRequestBuilderRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{name: "nil config"},
		{name: "missing target", cfg: &config.Config{}},
		{name: "blank header key", cfg: &config.Config{TargetURL: "http://x", Headers: map[string]string{" ": "v"}}},
		{name: "header value newline", cfg: &config.Config{TargetURL: "http://x", Headers: map[string]string{"A": "v\r\nB: c"}}},
		{name: "body conflict", cfg: &config.Config{TargetURL: "http://x", Body: "a", BodyFile: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRequestBuilder(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	for _, propagate := range []bool{true, false} {
		p := propagate
		cfg := &config.Config{TargetURL: "http://example.com", Tracing: config.TracingConfig{Propagate: &p}}
		builder, err := NewRequestBuilder(cfg)
		if err != nil {
			t.Fatal(err)
		}
		req, err := builder.Build(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if has := req.Header.Get("traceparent") != ""; has != propagate {
			t.Errorf("propagate=%v: traceparent present = %v", propagate, has)
		}
	}
}

func newRequester(t *testing.T, handler http.HandlerFunc, checks ...string) *Requester {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	builder, err := NewRequestBuilder(&config.Config{TargetURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseChecks(checks)
	if err != nil {
		t.Fatal(err)
	}
	return &Requester{Client: NewClient(5 * time.Second), Builder: builder, Checks: parsed}
}

func TestRequesterStatusErrors(t *testing.T) {
	r := newRequester(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, " overloaded \n")
	})

	err := r.Do(context.Background())
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *runner.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusServiceUnavailable || httpErr.Body != "overloaded" {
		t.Errorf("unexpected error %+v", httpErr)
	}
	if kind := metrics.ClassifyError(err); kind != metrics.ErrorKindHTTP5xx {
		t.Errorf("kind = %q, want %q", kind, metrics.ErrorKindHTTP5xx)
	}
}

func TestRequesterChecks(t *testing.T) {
	body := `{"status":"ok","items":[1,2]}`
	handler := func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}

	tests := []struct {
		name   string
		checks []string
		fail   bool
	}{
		{name: "no checks", checks: nil},
		{name: "exists", checks: []string{"items.#"}},
		{name: "equals", checks: []string{"status=ok"}},
		{name: "mismatch", checks: []string{"status=down"}, fail: true},
		{name: "missing", checks: []string{"status", "error.code"}, fail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newRequester(t, handler, tt.checks...).Do(context.Background())
			if !tt.fail {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var checkErr *CheckError
			if !errors.As(err, &checkErr) {
				t.Fatalf("expected *CheckError, got %v", err)
			}
			if kind := metrics.ClassifyError(err); kind != metrics.ErrorKindCheck {
				t.Errorf("kind = %q, want %q", kind, metrics.ErrorKindCheck)
			}
		})
	}
}

func TestCheckRejectsInvalidJSON(t *testing.T) {
	c := Check{Path: "a"}
	if err := c.Verify([]byte("<html>")); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestParseChecks(t *testing.T) {
	checks, err := ParseChecks([]string{"data.id", " status = ok "})
	if err != nil {
		t.Fatal(err)
	}
	if checks[0] != (Check{Path: "data.id"}) {
		t.Errorf("checks[0] = %+v", checks[0])
	}
	if checks[1] != (Check{Path: "status", Value: "ok", Exact: true}) {
		t.Errorf("checks[1] = %+v", checks[1])
	}
	if _, err := ParseChecks([]string{"=ok"}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewClientTimeout(t *testing.T) {
	if c := NewClient(-time.Second); c.Timeout != 0 {
		t.Errorf("negative timeout not clamped: %v", c.Timeout)
	}
	if c := NewClient(2 * time.Second); c.Timeout != 2*time.Second {
		t.Errorf("timeout = %v", c.Timeout)
	}
}
