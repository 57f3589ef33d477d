package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// ProposalPayload is the input for a proposal_writer task.
type ProposalPayload struct {
	JobDescription string          `json:"job_description"`
	ClientInfo     json.RawMessage `json:"client_info,omitempty"`
}

// ProposalWriter drafts a freelance proposal for a job posting.
type ProposalWriter struct{ base }

// NewProposalWriter returns a proposal_writer invoker.
func NewProposalWriter(c Completer, opts ...Option) *ProposalWriter {
	return &ProposalWriter{base: newBase(models.KindProposalWriter, c, opts)}
}

// Run implements Invoker.
func (a *ProposalWriter) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p ProposalPayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}
	if err := requireText(a.kind, [2]string{"job_description", p.JobDescription}); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Create a compelling freelance proposal for this job.

Job Description: %s
Client Info: %s

The proposal must:
1. Address the client's specific needs
2. Highlight relevant agency expertise
3. Describe a clear project approach
4. Include a realistic timeline and deliverables
5. Show understanding of the client's industry

Fields: title, introduction, approach, timeline, pricing_notes, closing`, p.JobDescription, compactJSON(p.ClientInfo))

	obj, err := a.completeObject(ctx, prompt, "title", "introduction", "approach", "timeline", "pricing_notes", "closing")
	if err != nil {
		return nil, err
	}
	return encode(a.kind, obj)
}
