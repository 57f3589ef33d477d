// Package agent implements the seven Lincoln agents.
//
// Each agent validates its payload, builds a prompt, calls the model through a
// Completer and checks that the reply carries the fields its callers rely on.
// Agents hold no mutable state; the dispatcher owns every task transition.
package agent

import (
	"context"
	"encoding/json"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Prompt is a single model request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
	// JSON asks the model to answer with a single JSON object.
	JSON bool
}

// Completer sends a prompt to the language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, p Prompt) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Invoker runs one kind of agent.
type Invoker interface {
	Kind() models.AgentKind
	Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// Option configures the invokers built by NewInvokers.
type Option func(*settings)

type settings struct {
	maxTokens       int
	chapterMaxWords int
}

// WithMaxTokens caps the tokens requested per model call.
func WithMaxTokens(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

func defaultSettings() settings {
	return settings{maxTokens: 8192, chapterMaxWords: 1200}
}

// base carries what every invoker shares.
type base struct {
	kind      models.AgentKind
	completer Completer
	settings  settings
}

func (b base) Kind() models.AgentKind { return b.kind }

func newBase(kind models.AgentKind, c Completer, opts []Option) base {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return base{kind: kind, completer: c, settings: s}
}
