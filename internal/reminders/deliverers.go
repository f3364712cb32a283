package reminders

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// LogDeliverer writes due notifications to the log.
type LogDeliverer struct {
	logger zerolog.Logger
}

func NewLogDeliverer(logger zerolog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger.With().Str("component", "alerts").Logger()}
}

func (l *LogDeliverer) Deliver(_ context.Context, n Notification, policy DisplayPolicy) error {
	if policy.Silent() {
		return nil
	}
	l.logger.Info().
		Str("notification_id", n.ID).
		Str("gig_id", n.Content.Data.GigID).
		Str("type", n.Content.Data.Type).
		Bool("sound", policy.PlaySound).
		Bool("badge", policy.SetBadge).
		Msg(n.Content.Title + " " + n.Content.Body)
	return nil
}

// TelegramSender is the part of the bot API used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDeliverer posts due notifications to a Telegram chat.
type TelegramDeliverer struct {
	bot    TelegramSender
	chatID int64
}

func NewTelegramDeliverer(bot TelegramSender, chatID int64) *TelegramDeliverer {
	return &TelegramDeliverer{bot: bot, chatID: chatID}
}

func (t *TelegramDeliverer) Deliver(_ context.Context, n Notification, policy DisplayPolicy) error {
	if policy.Silent() {
		return nil
	}
	if t.chatID == 0 {
		return fmt.Errorf("%w: telegram chat id is not configured", ErrPermanent)
	}

	msg := tgbotapi.NewMessage(t.chatID, formatMessage(n))
	msg.DisableNotification = !policy.PlaySound

	if _, err := t.bot.Send(msg); err != nil {
		return err
	}
	return nil
}

func formatMessage(n Notification) string {
	var b strings.Builder
	b.WriteString(n.Content.Title)
	if n.Content.Body != "" {
		b.WriteString("\n")
		b.WriteString(n.Content.Body)
	}
	return b.String()
}
