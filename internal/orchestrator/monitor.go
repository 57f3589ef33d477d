package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/lincoln/internal/agentlog"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// System health values.
const (
	SystemHealthy  = "healthy"
	SystemDegraded = "degraded"
)

// Health is one monitor sample.
type Health struct {
	Healthy int
	Total   int
	// Status is SystemHealthy when no agent is in the error state.
	Status string
	Queue  map[models.TaskStatus]int
}

// Monitor periodically logs system health.
type Monitor struct {
	d        *Dispatcher
	interval time.Duration
}

// NewMonitor returns a monitor sampling d every interval.
func NewMonitor(d *Dispatcher, interval time.Duration) *Monitor {
	return &Monitor{d: d, interval: interval}
}

// Run samples until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check takes one sample, logs it and emits an EventHealth. When the sink can
// archive status documents the sample is archived too.
func (m *Monitor) Check() Health {
	healthy, total := m.d.registry.Healthy()
	h := Health{Healthy: healthy, Total: total, Status: SystemHealthy, Queue: m.d.queue.Counts()}
	if healthy < total {
		h.Status = SystemDegraded
	}

	msg := fmt.Sprintf("healthy %d/%d", healthy, total)
	m.d.log.Infow("system health",
		"healthy", msg,
		"system_health", h.Status,
		"pending", h.Queue[models.TaskStatusPending],
		"running", h.Queue[models.TaskStatusRunning],
		"succeeded", h.Queue[models.TaskStatusSucceeded],
		"failed", h.Queue[models.TaskStatusFailed],
	)
	m.d.events.Emit(OrchestratorEvent{Type: EventHealth, Message: msg, Timestamp: m.d.now()})
	m.archive(h)
	return h
}

func (m *Monitor) archive(h Health) {
	archiver, ok := m.d.sink.(agentlog.StatusArchiver)
	if !ok {
		return
	}
	agents := make(map[models.AgentKind]AgentStatus, h.Total)
	for _, st := range m.d.registry.All() {
		agents[st.Kind] = st
	}
	path, err := archiver.ArchiveStatus(agentlog.SystemStatus{
		Timestamp:     m.d.now(),
		SystemHealth:  h.Status,
		Healthy:       h.Healthy,
		Total:         h.Total,
		AgentStatuses: agents,
		Queue:         h.Queue,
	})
	if err != nil {
		m.d.log.Errorw("system_status_archive_failed", "error", err)
		return
	}
	if path != "" {
		m.d.log.Debugw("system_status_archived", "path", path)
	}
}
