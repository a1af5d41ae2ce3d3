package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/flywheel/internal/runner"
	"github.com/torosent/flywheel/internal/tracing"
)

const (
	maxLoggedBodyBytes = 1024
	maxBodyReadSize    = 1024 * 1024
)

// Requester performs one HTTP operation per Do.
type Requester struct {
	Client  *http.Client
	Builder *RequestBuilder
	Checks  []Check
	Tracer  trace.Tracer
}

func (r *Requester) Do(ctx context.Context) (err error) {
	ctx, span := tracing.StartRequestSpan(ctx, r.Tracer, "http", "")
	var status int
	defer func() {
		tracing.EndSpan(span, err, attribute.Int("http.status_code", status))
	}()

	req, err := r.Builder.Build(ctx)
	if err != nil {
		return err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)
	status = resp.StatusCode

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		return &runner.HTTPError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(snippet)),
		}
	}
	if len(r.Checks) == 0 {
		return nil
	}

	// A read error leaves a truncated body, which the checks then reject.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	for _, c := range r.Checks {
		if err := c.Verify(body); err != nil {
			return err
		}
	}
	return nil
}
