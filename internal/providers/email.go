// Package providers implements the channel delivery adapters consumed by the
// dispatcher. Each adapter owns its transport details; the dispatcher only
// sees Send(ctx, notification) -> error.
package providers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/config"
	"notification-engine/internal/models"
	"notification-engine/pkg/email"
)

// EmailSender delivers over SMTP.
type EmailSender struct {
	cfg    config.Config
	logger *logrus.Logger
}

func NewEmailSender(cfg config.Config, logger *logrus.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, logger: logger}
}

func (s *EmailSender) Send(ctx context.Context, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.cfg.Email
	if e.SMTPServer == "" || e.SMTPPort == 0 || e.Username == "" {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, or Username is empty")
	}
	from := e.Username
	if e.FromName != "" {
		from = fmt.Sprintf("%s <%s>", e.FromName, e.Username)
	}
	if err := email.Send(e.SMTPServer, e.SMTPPort, e.Username, e.Password, from, n.Recipient, n.Subject, n.Body); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.Recipient, err)
	}
	return nil
}
