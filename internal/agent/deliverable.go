package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// DeliverablePayload is the input for a deliverable_assembler task.
type DeliverablePayload struct {
	ProjectRequirements json.RawMessage   `json:"project_requirements"`
	AgentOutputs        []json.RawMessage `json:"agent_outputs,omitempty"`
}

// DeliverableAssembler combines earlier agent outputs into one client deliverable.
type DeliverableAssembler struct{ base }

// NewDeliverableAssembler returns a deliverable_assembler invoker.
func NewDeliverableAssembler(c Completer, opts ...Option) *DeliverableAssembler {
	return &DeliverableAssembler{base: newBase(models.KindDeliverableAssembler, c, opts)}
}

// Run implements Invoker.
func (a *DeliverableAssembler) Run(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p DeliverablePayload
	if err := decodePayload(a.kind, payload, &p); err != nil {
		return nil, err
	}
	if isNull(p.ProjectRequirements) {
		return nil, invalidPayload(a.kind, "project_requirements is required")
	}

	outputs := make([]string, 0, len(p.AgentOutputs))
	for _, o := range p.AgentOutputs {
		outputs = append(outputs, compactJSON(o))
	}
	available := "None"
	if len(outputs) > 0 {
		available = "[" + strings.Join(outputs, ",") + "]"
	}

	prompt := fmt.Sprintf(`Assemble a deliverable package from these requirements and agent outputs.

Project Requirements: %s
Agent Outputs: %s

The package must:
1. Combine all relevant outputs into a cohesive whole
2. Keep every component consistent
3. Open with an executive summary
4. Include an implementation timeline and next steps
5. Provide quality assurance notes

Fields: executive_summary, deliverable_components (array), implementation_plan, quality_notes, next_steps`,
		compactJSON(p.ProjectRequirements), available)

	obj, err := a.completeObject(ctx, prompt,
		"executive_summary", "deliverable_components", "implementation_plan", "quality_notes", "next_steps")
	if err != nil {
		return nil, err
	}
	return encode(a.kind, obj)
}
