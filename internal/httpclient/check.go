package httpclient

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/torosent/flywheel/internal/metrics"
)

// Check asserts something about a JSON response body.
type Check struct {
	Path  string
	Value string
	// Exact is set when Value must match; otherwise the path only has to exist.
	Exact bool
}

// ParseChecks parses "path" and "path=value" expressions.
func ParseChecks(exprs []string) ([]Check, error) {
	checks := make([]Check, 0, len(exprs))
	for _, expr := range exprs {
		path, value, exact := strings.Cut(expr, "=")
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("check %q: path is required", expr)
		}
		checks = append(checks, Check{Path: path, Value: strings.TrimSpace(value), Exact: exact})
	}
	return checks, nil
}

func (c Check) String() string {
	if c.Exact {
		return c.Path + "=" + c.Value
	}
	return c.Path
}

// Verify returns a *CheckError when body does not satisfy c.
func (c Check) Verify(body []byte) error {
	if !gjson.ValidBytes(body) {
		return &CheckError{Check: c, Reason: "response is not valid JSON"}
	}
	got := gjson.GetBytes(body, c.Path)
	if !got.Exists() {
		return &CheckError{Check: c, Reason: "path not found"}
	}
	if c.Exact && got.String() != c.Value {
		return &CheckError{Check: c, Reason: fmt.Sprintf("got %q", got.String())}
	}
	return nil
}

// CheckError reports a failed response check.
type CheckError struct {
	Check  Check
	Reason string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s: %s", e.Check, e.Reason)
}

// Kind buckets every check failure under one error kind.
func (e *CheckError) Kind() string { return metrics.ErrorKindCheck }
