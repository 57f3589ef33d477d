// Package notify tells people when an agent finishes a task.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/internal/config"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

// Notifier announces a completed task. Errors are for logging only.
type Notifier interface {
	Notify(ctx context.Context, task models.AgentTask) error
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, models.AgentTask) error { return nil }

// FromConfig returns the email notifier when it is enabled and Nop otherwise.
func FromConfig(cfg config.NotifyConfig, log *zap.SugaredLogger) (Notifier, error) {
	if !cfg.Email.Enabled {
		return Nop{}, nil
	}
	return NewEmail(cfg.Email, WithLogger(log))
}
