// Package notify sends operator notifications about new accounts and
// uploaded datasets.
package notify

import (
	"context"
	"fmt"

	"pride/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier delivers a short text message to the operators.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// Telegram posts notifications to one chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// New returns a Telegram notifier, or Nop when notifications are disabled or
// no token is configured.
func New(cfg *config.Config, logger *zap.Logger) (Notifier, error) {
	tg := cfg.Notify.Telegram
	if !tg.Enabled || tg.BotToken == "" {
		logger.Info("Telegram notifications are disabled (notify.telegram.enabled=false or token is empty)")
		return Nop{}, nil
	}
	return NewTelegram(tg.BotToken, tgbotapi.APIEndpoint, tg.ChatID, logger)
}

// NewTelegram authorizes the bot against endpoint, a format string taking
// the token and the method name.
func NewTelegram(token, endpoint string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("notify.telegram.chat_id is required")
	}

	botAPI, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Telegram{api: botAPI, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send Telegram notification", zap.Int64("chat_id", t.chatID), zap.Error(err))
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}
