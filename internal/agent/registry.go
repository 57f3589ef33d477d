package agent

import (
	"fmt"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Invokers holds one invoker per agent kind.
type Invokers struct {
	ProposalWriter       Invoker
	ProductGenerator     Invoker
	ContentGenerator     Invoker
	OutreachComposer     Invoker
	DeliverableAssembler Invoker
	CodeGenerator        Invoker
	CodeReviewer         Invoker
}

// NewInvokers builds all seven agents around one completer.
func NewInvokers(c Completer, opts ...Option) *Invokers {
	return &Invokers{
		ProposalWriter:       NewProposalWriter(c, opts...),
		ProductGenerator:     NewProductGenerator(c, opts...),
		ContentGenerator:     NewContentGenerator(c, opts...),
		OutreachComposer:     NewOutreachComposer(c, opts...),
		DeliverableAssembler: NewDeliverableAssembler(c, opts...),
		CodeGenerator:        NewCodeGenerator(c, opts...),
		CodeReviewer:         NewCodeReviewer(c, opts...),
	}
}

// Resolve returns the invoker for kind.
func (r *Invokers) Resolve(kind models.AgentKind) (Invoker, error) {
	var inv Invoker
	switch kind {
	case models.KindProposalWriter:
		inv = r.ProposalWriter
	case models.KindProductGenerator:
		inv = r.ProductGenerator
	case models.KindContentGenerator:
		inv = r.ContentGenerator
	case models.KindOutreachComposer:
		inv = r.OutreachComposer
	case models.KindDeliverableAssembler:
		inv = r.DeliverableAssembler
	case models.KindCodeGenerator:
		inv = r.CodeGenerator
	case models.KindCodeReviewer:
		inv = r.CodeReviewer
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: no invoker registered for %q", ErrUnknownKind, kind)
	}
	return inv, nil
}

// All returns the registered invokers in kind order.
func (r *Invokers) All() []Invoker {
	out := make([]Invoker, 0, len(models.AllKinds()))
	for _, k := range models.AllKinds() {
		if inv, err := r.Resolve(k); err == nil {
			out = append(out, inv)
		}
	}
	return out
}

var (
	_ Invoker = (*ProposalWriter)(nil)
	_ Invoker = (*ProductGenerator)(nil)
	_ Invoker = (*ContentGenerator)(nil)
	_ Invoker = (*OutreachComposer)(nil)
	_ Invoker = (*DeliverableAssembler)(nil)
	_ Invoker = (*CodeGenerator)(nil)
	_ Invoker = (*CodeReviewer)(nil)
)
