package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// jsonInstruction is appended to every prompt that expects a JSON reply.
const jsonInstruction = "Respond with a single JSON object only, with no surrounding prose or code fences."

// systemPrompt frames every agent as part of the agency.
const systemPrompt = "You are %s, a specialist agent at Lincoln Agency, a digital services agency. " +
	"You produce client-ready work that is specific, accurate and professionally written."

// complete calls the model and wraps service failures.
func (b base) complete(ctx context.Context, p Prompt) (string, error) {
	if p.MaxTokens == 0 {
		p.MaxTokens = b.settings.maxTokens
	}
	if p.System == "" {
		p.System = fmt.Sprintf(systemPrompt, b.kind.DisplayName())
	}
	if p.JSON {
		p.User = strings.TrimSpace(p.User) + "\n\n" + jsonInstruction
	}

	text, err := b.completer.Complete(ctx, p)
	if err != nil {
		return "", &InvocationError{Kind: b.kind, Err: err}
	}
	return text, nil
}

// completeObject asks for a JSON object and checks that every required field is present
// and non-null.
func (b base) completeObject(ctx context.Context, user string, required ...string) (map[string]json.RawMessage, error) {
	text, err := b.complete(ctx, Prompt{User: user, JSON: true})
	if err != nil {
		return nil, err
	}

	obj, err := extractObject(text)
	if err != nil {
		return nil, malformed(b.kind, "%v", err)
	}
	for _, field := range required {
		v, ok := obj[field]
		if !ok || isNull(v) {
			return nil, malformed(b.kind, "reply is missing %q", field)
		}
	}
	return obj, nil
}

// extractObject finds the outermost JSON object in a model reply.
func extractObject(text string) (map[string]json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, errNoJSON{snippet: truncate(text, 200)}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

type errNoJSON struct{ snippet string }

func (e errNoJSON) Error() string { return "no JSON object in reply: " + e.snippet }

func encode(kind models.AgentKind, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, malformed(kind, "encode result: %v", err)
	}
	return data, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// truncate keeps at most maxLen runes of s.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// decodePayload unmarshals a task payload, treating any decode error as permanent.
func decodePayload(kind models.AgentKind, raw json.RawMessage, v any) error {
	if isNull(raw) {
		return invalidPayload(kind, "payload is empty")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidPayload(kind, "%v", err)
	}
	return nil
}

// requireText reports the first named field whose value is blank.
func requireText(kind models.AgentKind, fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return invalidPayload(kind, "%s is required", f[0])
		}
	}
	return nil
}

// compactJSON renders a raw value for inclusion in a prompt.
func compactJSON(raw json.RawMessage) string {
	if isNull(raw) {
		return "Not provided"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
