package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/lincoln/internal/agent"
)

var _ agent.Completer = (*Client)(nil)

// Complete sends one prompt and returns the concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, p agent.Prompt) (string, error) {
	maxTokens := c.maxTokens
	if p.MaxTokens > 0 {
		maxTokens = int64(p.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	start := time.Now()
	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	c.log.Debugw("model_call",
		"model", string(c.model),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", string(resp.StopReason),
		"duration", time.Since(start),
	)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}
