package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/ShayCichocki/lincoln/internal/config"
	"github.com/ShayCichocki/lincoln/pkg/models"
)

const (
	maxResultBytes  = 8000
	defaultHost     = "https://api.sendgrid.com"
	mailSendPath    = "/v3/mail/send"
	truncatedSuffix = "\n... (truncated)"
)

// SendFunc performs a SendGrid API request. It must honour ctx.
type SendFunc func(ctx context.Context, req rest.Request) (*rest.Response, error)

// Option configures an EmailNotifier.
type Option func(*EmailNotifier)

// WithSender replaces sendgrid.MakeRequestWithContext.
func WithSender(fn SendFunc) Option {
	return func(n *EmailNotifier) { n.send = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(n *EmailNotifier) {
		if l != nil {
			n.log = l
		}
	}
}

// EmailNotifier mails a summary of each finished task through SendGrid.
type EmailNotifier struct {
	cfg  config.EmailConfig
	send SendFunc
	log  *zap.SugaredLogger
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmail validates cfg and returns an EmailNotifier.
func NewEmail(cfg config.EmailConfig, opts ...Option) (*EmailNotifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("notify: sendgrid api key is required")
	}
	if cfg.From == "" {
		return nil, errors.New("notify: email from address is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("notify: at least one email recipient is required")
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}

	n := &EmailNotifier{
		cfg:  cfg,
		send: sendgrid.MakeRequestWithContext,
		log:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify sends the completion email. The request is bound to ctx.
func (n *EmailNotifier) Notify(ctx context.Context, task models.AgentTask) error {
	req := sendgrid.GetRequest(n.cfg.APIKey, mailSendPath, n.cfg.Host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(n.message(task))

	resp, err := n.send(ctx, req)
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	if err != nil {
		n.log.Warnw("notify_email_failed", "task_id", task.ID, "kind", task.Kind, "error", err)
		return fmt.Errorf("send email: %w", err)
	}
	n.log.Debugw("notify_email_sent", "task_id", task.ID, "kind", task.Kind, "to", n.cfg.To)
	return nil
}

// Subject returns the mail subject for a finished task.
func Subject(task models.AgentTask) string {
	verb := "completed"
	if task.Status == models.TaskStatusFailed {
		verb = "failed"
	}
	return fmt.Sprintf("[lincoln] %s %s a task", task.Kind.DisplayName(), verb)
}

func (n *EmailNotifier) message(task models.AgentTask) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail("", n.cfg.From))
	m.Subject = Subject(task)

	p := mail.NewPersonalization()
	for _, to := range n.cfg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", body(task)))
	return m
}

func body(task models.AgentTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent: %s\n", task.Kind.DisplayName())
	fmt.Fprintf(&b, "Task: %s\n", task.ID)
	fmt.Fprintf(&b, "Status: %s\n", task.Status)
	if task.Retries > 0 {
		fmt.Fprintf(&b, "Retries: %d\n", task.Retries)
	}
	if task.Error != "" && task.Status == models.TaskStatusFailed {
		fmt.Fprintf(&b, "Error: %s\n", task.Error)
	}
	if len(task.Result) > 0 {
		b.WriteString("\nResult:\n")
		b.WriteString(prettyResult(task.Result))
		b.WriteString("\n")
	}
	return b.String()
}

func prettyResult(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	s := buf.String()
	if len(s) <= maxResultBytes {
		return s
	}
	cut := maxResultBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedSuffix
}
