package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// OutreachPayload is the input for an outreach_composer task.
type OutreachPayload struct {
	RecipientInfo json.RawMessage `json:"recipient_info"`
	EmailTemplate string          `json:"email_template"`
	CampaignGoal  string          `json:"campaign_goal,omitempty"`
}

// OutreachComposer personalizes a cold email for one recipient.
type OutreachComposer struct{ base }

// NewOutreachComposer returns an outreach_composer invoker.
func NewOutreachComposer(c Completer, opts ...Option) *OutreachComposer {
	return &OutreachComposer{base: newBase(models.KindOutreachComposer, c, opts)}
}

// Run implements Invoker.
func (a *OutreachComposer) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p OutreachPayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}
	if isNull(p.RecipientInfo) {
		return nil, invalidPayload(a.kind, "recipient_info is required")
	}
	if err := requireText(a.kind, [2]string{"email_template", p.EmailTemplate}); err != nil {
		return nil, err
	}
	goal := p.CampaignGoal
	if strings.TrimSpace(goal) == "" {
		goal = "start a conversation about working together"
	}

	prompt := fmt.Sprintf(`Personalize this cold email template using the recipient's information.

Recipient Info: %s
Email Template: %s
Campaign Goal: %s

Requirements:
1. Personalize the greeting and opening
2. Reference specific details about their business or role
3. Tailor the value proposition to their needs
4. Keep a professional yet personable tone

Fields: subject, personalized_email, personalization_notes`, compactJSON(p.RecipientInfo), p.EmailTemplate, goal)

	obj, err := a.completeObject(ctx, prompt, "subject", "personalized_email", "personalization_notes")
	if err != nil {
		return nil, err
	}
	return encode(a.kind, obj)
}
