package models

import (
	"fmt"
	"strings"
)

// AgentKind identifies one of the fixed agent variants a task can be dispatched to.
type AgentKind string

const (
	// KindProposalWriter drafts proposals for freelance and contract opportunities.
	KindProposalWriter AgentKind = "proposal_writer"
	// KindProductGenerator produces ebooks and professional templates.
	KindProductGenerator AgentKind = "product_generator"
	// KindContentGenerator writes social media posts and short video scripts.
	KindContentGenerator AgentKind = "content_generator"
	// KindOutreachComposer personalizes cold outreach emails.
	KindOutreachComposer AgentKind = "outreach_composer"
	// KindDeliverableAssembler combines other agents' outputs into a client deliverable.
	KindDeliverableAssembler AgentKind = "deliverable_assembler"
	// KindCodeGenerator generates code projects from a project description.
	KindCodeGenerator AgentKind = "code_generator"
	// KindCodeReviewer reviews code for quality, security and performance.
	KindCodeReviewer AgentKind = "code_reviewer"
)

var allKinds = []AgentKind{
	KindProposalWriter,
	KindProductGenerator,
	KindContentGenerator,
	KindOutreachComposer,
	KindDeliverableAssembler,
	KindCodeGenerator,
	KindCodeReviewer,
}

// AllKinds returns every agent kind in a stable order.
func AllKinds() []AgentKind {
	out := make([]AgentKind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid returns true if the kind is a known value.
func (k AgentKind) Valid() bool {
	switch k {
	case KindProposalWriter, KindProductGenerator, KindContentGenerator,
		KindOutreachComposer, KindDeliverableAssembler, KindCodeGenerator, KindCodeReviewer:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (k AgentKind) String() string {
	return string(k)
}

// ParseAgentKind converts user input into an AgentKind.
// Matching is case-insensitive and accepts dashes in place of underscores.
func ParseAgentKind(s string) (AgentKind, error) {
	k := AgentKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.Valid() {
		return "", fmt.Errorf("unknown agent kind %q", s)
	}
	return k, nil
}

// AgentInfo describes an agent kind for status reporting.
type AgentInfo struct {
	Kind         AgentKind `json:"kind"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []string  `json:"capabilities"`
}

var catalog = map[AgentKind]AgentInfo{
	KindProposalWriter: {
		Name:         "Proposal Writer",
		Description:  "Drafts compelling proposals for freelance and contract opportunities",
		Capabilities: []string{"generate_proposal"},
	},
	KindProductGenerator: {
		Name:         "Product Generator",
		Description:  "Generates ebooks and professional templates",
		Capabilities: []string{"generate_ebook", "generate_template"},
	},
	KindContentGenerator: {
		Name:         "Content Generator",
		Description:  "Creates short-form scripts and social media content",
		Capabilities: []string{"create_social_content", "create_video_script"},
	},
	KindOutreachComposer: {
		Name:         "Outreach Composer",
		Description:  "Personalizes cold emails using recipient data",
		Capabilities: []string{"personalize_email"},
	},
	KindDeliverableAssembler: {
		Name:         "Deliverable Assembler",
		Description:  "Assembles deliverables from multiple agent outputs",
		Capabilities: []string{"assemble_deliverable"},
	},
	KindCodeGenerator: {
		Name:         "Code Generator",
		Description:  "Generates working code projects from specifications",
		Capabilities: []string{"generate_code_project"},
	},
	KindCodeReviewer: {
		Name:         "Code Reviewer",
		Description:  "Reviews generated code for quality and security",
		Capabilities: []string{"review_code"},
	},
}

// Info returns the catalog entry for the kind.
// Unknown kinds return an entry with only the Kind field set.
func (k AgentKind) Info() AgentInfo {
	info, ok := catalog[k]
	if !ok {
		return AgentInfo{Kind: k}
	}
	info.Kind = k
	info.Capabilities = append([]string(nil), info.Capabilities...)
	return info
}

// DisplayName returns a human-readable name for the kind.
func (k AgentKind) DisplayName() string {
	if info, ok := catalog[k]; ok {
		return info.Name
	}
	return string(k)
}

// KindForTaskType maps a capability name such as "review_code" to the agent that
// provides it.
func KindForTaskType(taskType string) (AgentKind, bool) {
	for _, k := range allKinds {
		for _, c := range catalog[k].Capabilities {
			if c == taskType {
				return k, true
			}
		}
	}
	return "", false
}
