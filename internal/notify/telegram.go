// Package notify implements domain.AlertSink, standing in for spec.md's
// opaque "broadcast bus" downstream consumer (§1). Adapted from the
// teacher's internal/bot.Handler: same tgbotapi construction and Markdown
// send, reduced to one-way alerting — no command dispatch, no user state
// machine, since nothing here models end-user interaction.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// TelegramSink delivers critical-error and study-error notifications to a
// single operator chat.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegramSink dials the Telegram Bot API with token and returns a sink
// that posts to chatID.
func NewTelegramSink(token string, chatID int64, logger *slog.Logger) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: dial telegram: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID, logger: logger.With("component", "notify")}, nil
}

// NotifyCriticalError implements domain.AlertSink.
func (s *TelegramSink) NotifyCriticalError(reason string) error {
	return s.send(fmt.Sprintf("*critical error*\n%s", reason))
}

// NotifyStudyError implements domain.AlertSink.
func (s *TelegramSink) NotifyStudyError(ev domain.StudyErrorEvent) error {
	return s.send(fmt.Sprintf("*study error* `%s`\n%s", ev.StudyID, ev.Reason))
}

func (s *TelegramSink) send(text string) error {
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error("telegram send failed", "err", err)
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}
