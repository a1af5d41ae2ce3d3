package metrics

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Error kinds reported in Stats.Errors.
const (
	ErrorKindCanceled  = "canceled"
	ErrorKindTimeout   = "timeout"
	ErrorKindNetwork   = "network"
	ErrorKindHTTP4xx   = "http_4xx"
	ErrorKindHTTP5xx   = "http_5xx"
	ErrorKindCheck     = "check_failed"
	ErrorKindOther     = "other"
	errorKindMaxLength = 30
)

// StatusCoder is implemented by errors that carry a protocol status code.
type StatusCoder interface {
	StatusCode() int
}

// Kinder is implemented by errors that name their own kind.
type Kinder interface {
	Kind() string
}

// ClassifyError maps an operation error to a short, stable kind label so that
// error breakdowns stay bounded regardless of how many distinct messages occur.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	}

	var kinder Kinder
	if errors.As(err, &kinder) {
		if kind := strings.TrimSpace(kinder.Kind()); kind != "" {
			if len(kind) > errorKindMaxLength {
				kind = kind[:errorKindMaxLength]
			}
			return kind
		}
	}

	var coder StatusCoder
	if errors.As(err, &coder) {
		code := coder.StatusCode()
		switch {
		case code >= 500:
			return ErrorKindHTTP5xx
		case code >= 400:
			return ErrorKindHTTP4xx
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorKindNetwork
	}
	return ErrorKindOther
}
