package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"notification-engine/internal/config"
	"notification-engine/internal/models"
	"notification-engine/internal/utils"
	"notification-engine/pkg/sms"
)

// SMSSender delivers over the Twilio API.
type SMSSender struct {
	cfg    config.Config
	logger *logrus.Logger
}

func NewSMSSender(cfg config.Config, logger *logrus.Logger) *SMSSender {
	return &SMSSender{cfg: cfg, logger: logger}
}

func (s *SMSSender) Send(ctx context.Context, n models.Notification) error {
	c := s.cfg.SMS
	if c.AccountSID == "" || c.AuthToken == "" || c.FromNumber == "" {
		return fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
	}

	body := n.Body
	if n.Subject != "" {
		body = fmt.Sprintf("%s\n%s", n.Subject, n.Body)
	}

	log := s.logger.WithFields(logrus.Fields{"channel": n.Channel, "notification_id": n.ID})
	return utils.Retry(ctx, log, 3, time.Second, func() error {
		return sms.Send(c.AccountSID, c.AuthToken, c.FromNumber, n.Recipient, body)
	})
}
