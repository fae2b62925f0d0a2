package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
)

var _ adapter.LogDisplay = (*NoopDisplay)(nil)

// NoopDisplay logs instead of calling Telegram. Used in dev mode.
type NoopDisplay struct {
	log *zerolog.Logger
}

func NewNoopDisplay(logger *zerolog.Logger) *NoopDisplay {
	l := logger.With().Str("component", "NoopDisplay").Logger()
	return &NoopDisplay{log: &l}
}

func (n *NoopDisplay) EditLog(ctx context.Context, botID string, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().Str("bot_id", botID).Int64("chat_id", chatID).Int("message_id", messageID).Str("text", text).Msg("[noop-telegram] edit poll log")
	return nil
}

func (n *NoopDisplay) SetWebhook(ctx context.Context, bot *model.Bot, url string) error {
	n.log.Info().Str("bot_id", bot.ID).Str("url", url).Msg("[noop-telegram] set webhook")
	return ctx.Err()
}
