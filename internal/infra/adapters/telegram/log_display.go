package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
)

var _ adapter.LogDisplay = (*LogDisplay)(nil)

// LogDisplay edits the message that mirrors a poll log.
type LogDisplay struct {
	clients *Clients
	log     *zerolog.Logger
}

func NewLogDisplay(clients *Clients, logger *zerolog.Logger) *LogDisplay {
	l := logger.With().Str("component", "LogDisplay").Logger()
	return &LogDisplay{clients: clients, log: &l}
}

func (d *LogDisplay) EditLog(ctx context.Context, botID string, chatID int64, messageID int, text string) error {
	bot, err := d.clients.Get(ctx, botID)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true

	err = request(bot, "editMessageText", edit)
	if isNotModified(err) {
		d.log.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Msg("poll log unchanged")
		return nil
	}
	return err
}
