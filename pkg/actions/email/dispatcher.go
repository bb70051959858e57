// Package email delivers email actions over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/models"
)

var (
	ErrNoRecipients     = errors.New("email action has no recipients")
	ErrInvalidRecipient = errors.New("email recipient contains a line break")
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type Config struct {
	Addr     string
	From     string
	Username string
	Password string
}

type Dispatcher struct {
	config Config
	auth   smtp.Auth
	send   SendFunc
	logger *slog.Logger
}

func NewDispatcher(config Config, logger *slog.Logger) *Dispatcher {
	return NewDispatcherWithSender(config, smtp.SendMail, logger)
}

func NewDispatcherWithSender(config Config, send SendFunc, logger *slog.Logger) *Dispatcher {
	var auth smtp.Auth

	if config.Username != "" {
		host, _, _ := strings.Cut(config.Addr, ":")
		auth = smtp.PlainAuth("", config.Username, config.Password, host)
	}

	return &Dispatcher{
		config: config,
		auth:   auth,
		send:   send,
		logger: logger.With("module", "email_action"),
	}
}

func (d *Dispatcher) Type() models.ActionType {
	return models.ActionEmail
}

func (d *Dispatcher) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        []string{"string", "array"},
				"description": "Recipient address or list of addresses.",
				"items":       map[string]any{"type": "string"},
			},
			"subject": map[string]any{"type": "string", "minLength": 1},
			"body":    map[string]any{"type": "string"},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req actions.Request) (map[string]any, error) {
	to := actions.Strings(req.Config, "to")
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	for _, addr := range to {
		if strings.ContainsAny(addr, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, addr)
		}
	}

	subject := actions.String(req.Config, "subject")
	msg := buildMessage(d.config.From, to, subject, actions.String(req.Config, "body"))

	d.logger.DebugContext(ctx, "Sending email", "to", to, "node_id", req.NodeID)

	done := make(chan error, 1)

	go func() {
		done <- d.send(d.config.Addr, d.auth, d.config.From, to, msg)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("email delivery interrupted: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("failed to send email: %w", err)
		}
	}

	return map[string]any{
		"to":      to,
		"subject": subject,
	}, nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	// non-printable bytes, CR and LF included, are Q-encoded and cannot end the header.
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)

	return []byte(b.String())
}
