package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"notification-engine/internal/config"
	"notification-engine/internal/models"
	"notification-engine/internal/utils"
)

// PushSender delivers push notifications through the go-telegram/bot library.
// Device registration maps user IDs to chat IDs; unregistered users fail the
// attempt, which the dispatcher records like any other delivery error.
type PushSender struct {
	cfg     config.Config
	logger  *logrus.Logger
	limiter *rate.Limiter

	mu    sync.RWMutex
	chats map[int64]int64 // userID -> chatID
}

func NewPushSender(cfg config.Config, logger *logrus.Logger) *PushSender {
	return &PushSender{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Push.RatePerSecond)), cfg.Push.RatePerSecond),
		chats:   make(map[int64]int64),
	}
}

// RegisterDevice binds a user to a chat so future pushes reach it.
func (s *PushSender) RegisterDevice(userID, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[userID] = chatID
}

func (s *PushSender) Send(ctx context.Context, n models.Notification) error {
	if s.cfg.Push.BotToken == "" {
		return fmt.Errorf("missing push configuration: BotToken is empty")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push rate limit exceeded: %w", err)
	}

	chatID, err := s.chatFor(n)
	if err != nil {
		return err
	}

	text := n.Body
	if n.Subject != "" {
		text = fmt.Sprintf("%s\n%s", n.Subject, n.Body)
	}

	log := s.logger.WithFields(logrus.Fields{"channel": n.Channel, "notification_id": n.ID})
	return utils.Retry(ctx, log, 3, time.Second, func() error {
		b, err := bot.New(s.cfg.Push.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize push bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send push to chat_id %d: %w", chatID, err)
		}
		return nil
	})
}

// chatFor resolves the delivery chat from the "user:<id>" recipient address.
func (s *PushSender) chatFor(n models.Notification) (int64, error) {
	userID := n.UserID
	if raw, ok := strings.CutPrefix(n.Recipient, "user:"); ok {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			userID = parsed
		}
	}
	s.mu.RLock()
	chatID, ok := s.chats[userID]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no push device registered for user %d", userID)
	}
	return chatID, nil
}
