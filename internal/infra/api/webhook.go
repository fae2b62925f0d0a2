package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/infra/redis"
	"github.com/khrabrovart/telebot/internal/usecase"
)

// SecretVerifier checks the secret token Telegram sends with each update.
type SecretVerifier interface {
	Verify(botID, token string) bool
}

// SecretHeader carries the token given to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Limiter caps webhook deliveries per bot.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimit struct {
	Limit  int
	Window time.Duration
}

// WebhookHandler takes Telegram updates for one bot. Only poll answers are
// acted on; every other update is acknowledged and ignored.
type WebhookHandler struct {
	polls   usecase.PollEventUseCase
	display adapter.LogDisplay
	limiter Limiter
	rate    RateLimit
	secrets SecretVerifier
	log     *zerolog.Logger
}

func NewWebhookHandler(polls usecase.PollEventUseCase, display adapter.LogDisplay, limiter Limiter, rate RateLimit, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "Webhook").Logger()
	return &WebhookHandler{polls: polls, display: display, limiter: limiter, rate: rate, log: &l}
}

// WithSecrets rejects updates whose secret token header does not match.
func (h *WebhookHandler) WithSecrets(v SecretVerifier) *WebhookHandler {
	h.secrets = v
	return h
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	ctx := logging.WithBotID(r.Context(), botID)
	log := logging.With(ctx, h.log)

	if h.secrets != nil && !h.secrets.Verify(botID, r.Header.Get(SecretHeader)) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("update with a bad secret token rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.allow(ctx, botID, log) {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.rate.Window.Seconds())))
		http.Error(w, domain.ErrRateLimited.Error(), http.StatusTooManyRequests)
		return
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log.Warn().Err(err).Msg("undecodable update dropped")
		w.WriteHeader(http.StatusOK)
		return
	}
	if upd.PollAnswer == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.pollAnswer(ctx, botID, upd.PollAnswer, log); err != nil {
		// Telegram redelivers on non-2xx.
		http.Error(w, "try again later", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) allow(ctx context.Context, botID string, log *zerolog.Logger) bool {
	if h.limiter == nil || h.rate.Limit <= 0 {
		return true
	}
	ok, err := h.limiter.Allow(ctx, redis.WebhookKey(botID), h.rate.Limit, h.rate.Window)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiter unavailable; letting update through")
		return true
	}
	return ok
}

// pollAnswer returns an error only when redelivery can succeed.
func (h *WebhookHandler) pollAnswer(ctx context.Context, botID string, pa *tgbotapi.PollAnswer, log *zerolog.Logger) error {
	ev := usecase.VoteEvent{
		Voter: usecase.Voter{
			ID:        pa.User.ID,
			FirstName: pa.User.FirstName,
			LastName:  pa.User.LastName,
			Username:  pa.User.UserName,
		},
		OptionIDs: pa.OptionIDs,
	}

	rendered, err := h.polls.RecordVote(ctx, pa.PollID, ev)
	switch {
	case errors.Is(err, domain.ErrLogMissing):
		log.Debug().Str("poll_id", pa.PollID).Msg("answer for an untracked poll")
		return nil
	case errors.Is(err, domain.ErrInvalidState):
		log.Warn().Err(err).Msg("answer dropped")
		return nil
	case err != nil:
		return err
	}

	if err := h.display.EditLog(ctx, botID, rendered.ChatID, rendered.MessageID, rendered.Text); err != nil {
		// The vote is stored; the next one refreshes the display.
		log.Error().Err(err).Str("poll_id", pa.PollID).Msg("poll log display edit failed")
	}
	return nil
}
