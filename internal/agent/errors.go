package agent

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

var (
	// ErrInvalidPayload means the task payload can never succeed as given.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownKind is returned by Resolve for kinds outside the closed set.
	ErrUnknownKind = errors.New("unknown agent kind")
	// ErrTimeout marks an invocation that ran past its deadline.
	ErrTimeout = errors.New("agent invocation timed out")
	// ErrMalformedOutput means the model answered but the reply was unusable.
	// A fresh sample may succeed, so callers treat it as transient.
	ErrMalformedOutput = errors.New("malformed model output")
)

// InvocationError wraps a failure from the language model service.
type InvocationError struct {
	Kind models.AgentKind
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: model call failed: %v", e.Kind, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func invalidPayload(kind models.AgentKind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, kind, fmt.Sprintf(format, args...))
}

func malformed(kind models.AgentKind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedOutput, kind, fmt.Sprintf(format, args...))
}
