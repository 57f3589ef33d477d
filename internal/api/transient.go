package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
)

// statusOverloaded is Anthropic's "overloaded" status.
const statusOverloaded = 529

// IsTransient reports whether a model call failure may succeed if retried.
// Rate limiting, overload, server errors, request timeouts, network errors and
// deadlines are transient; other API errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code == statusOverloaded:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
