package telegram

import (
	"context"
	"fmt"
	neturl "net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

// AllowedUpdates are the update kinds bots receive on their webhook.
var AllowedUpdates = []string{"message", "callback_query", "poll_answer"}

// WebhookRegistrar points a bot's webhook at its route.
type WebhookRegistrar struct {
	clients *Clients
	secret  func(botID string) string
	log     *zerolog.Logger
}

func NewWebhookRegistrar(clients *Clients, logger *zerolog.Logger) *WebhookRegistrar {
	l := logger.With().Str("component", "WebhookRegistrar").Logger()
	return &WebhookRegistrar{clients: clients, log: &l}
}

// WithSecret makes Telegram send secret(botID) in X-Telegram-Bot-Api-Secret-Token.
func (w *WebhookRegistrar) WithSecret(secret func(botID string) string) *WebhookRegistrar {
	w.secret = secret
	return w
}

func (w *WebhookRegistrar) SetWebhook(_ context.Context, bot *model.Bot, url string) error {
	if _, err := neturl.Parse(url); err != nil || url == "" {
		return fmt.Errorf("webhook url %q: invalid", url)
	}
	// tgbotapi.WebhookConfig has no secret_token field, so the call is built by hand.
	params := tgbotapi.Params{"url": url}
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return err
	}
	if w.secret != nil {
		params.AddNonEmpty("secret_token", w.secret(bot.ID))
	}

	w.clients.Forget(bot.ID)
	if err := requestParams(w.clients.ForToken(bot.Token), "setWebhook", params); err != nil {
		return err
	}
	w.log.Info().Str("bot_id", bot.ID).Str("url", url).Bool("secret", w.secret != nil).Msg("webhook registered")
	return nil
}
