package orchestrator

import (
	"sync"
	"time"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// AgentState is the live state of one agent kind.
type AgentState string

const (
	AgentIdle    AgentState = "idle"
	AgentWorking AgentState = "working"
	// AgentError means the most recent task of this kind failed.
	AgentError AgentState = "error"
)

// AgentStatus reports what one agent kind is doing.
type AgentStatus struct {
	Kind        models.AgentKind `json:"kind"`
	Name        string           `json:"name"`
	State       AgentState       `json:"state"`
	CurrentTask string           `json:"current_task,omitempty"`
	LastActive  *time.Time       `json:"last_active,omitempty"`
	Processed   int              `json:"processed"`
	Failed      int              `json:"failed"`
	LastError   string           `json:"last_error,omitempty"`
}

type agentEntry struct {
	status AgentStatus
	active map[string]struct{}
}

// AgentRegistry tracks per-kind agent status.
// It provides thread-safe storage and retrieval of agent information.
type AgentRegistry struct {
	agents map[models.AgentKind]*agentEntry
	mu     sync.RWMutex
}

// NewAgentRegistry creates a registry with every kind idle.
func NewAgentRegistry() *AgentRegistry {
	r := &AgentRegistry{agents: make(map[models.AgentKind]*agentEntry)}
	for _, k := range models.AllKinds() {
		r.agents[k] = &agentEntry{
			status: AgentStatus{Kind: k, Name: k.DisplayName(), State: AgentIdle},
			active: make(map[string]struct{}),
		}
	}
	return r
}

func (r *AgentRegistry) entry(kind models.AgentKind) *agentEntry {
	e, ok := r.agents[kind]
	if !ok {
		e = &agentEntry{
			status: AgentStatus{Kind: kind, Name: kind.DisplayName(), State: AgentIdle},
			active: make(map[string]struct{}),
		}
		r.agents[kind] = e
	}
	return e
}

// Started marks taskID as in progress for kind.
func (r *AgentRegistry) Started(kind models.AgentKind, taskID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(kind)
	e.active[taskID] = struct{}{}
	e.status.State = AgentWorking
	e.status.CurrentTask = taskID
	e.status.LastActive = &at
}

// Finished records the end of taskID. A failure leaves the kind in AgentError until
// its next success.
func (r *AgentRegistry) Finished(kind models.AgentKind, taskID string, succeeded bool, errMsg string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(kind)
	delete(e.active, taskID)
	e.status.LastActive = &at

	if succeeded {
		e.status.Processed++
		e.status.LastError = ""
	} else {
		e.status.Failed++
		e.status.LastError = errMsg
	}

	switch {
	case len(e.active) > 0:
		e.status.State = AgentWorking
		for id := range e.active {
			e.status.CurrentTask = id
			break
		}
	case succeeded:
		e.status.State = AgentIdle
		e.status.CurrentTask = ""
	default:
		e.status.State = AgentError
		e.status.CurrentTask = ""
	}
}

// Get returns the status of kind.
func (r *AgentRegistry) Get(kind models.AgentKind) (AgentStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.agents[kind]
	if !ok {
		return AgentStatus{}, false
	}
	return e.status.clone(), true
}

// All returns every agent status in kind order.
func (r *AgentRegistry) All() []AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentStatus, 0, len(r.agents))
	for _, k := range models.AllKinds() {
		if e, ok := r.agents[k]; ok {
			out = append(out, e.status.clone())
		}
	}
	return out
}

// Healthy returns how many agent kinds are not in the error state, and the total.
func (r *AgentRegistry) Healthy() (healthy, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.agents {
		total++
		if e.status.State != AgentError {
			healthy++
		}
	}
	return healthy, total
}

func (s AgentStatus) clone() AgentStatus {
	if s.LastActive != nil {
		t := *s.LastActive
		s.LastActive = &t
	}
	return s
}
