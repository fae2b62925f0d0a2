package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
)

// Clients hands out one BotAPI per registered bot. Tokens come from the bot store.
type Clients struct {
	bots     repository.BotRepository
	endpoint string
	http     *http.Client

	mu    sync.Mutex
	cache map[string]*tgbotapi.BotAPI
}

// NewClients uses tgbotapi.APIEndpoint when endpoint is empty.
func NewClients(bots repository.BotRepository, endpoint string, timeout time.Duration) *Clients {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Clients{
		bots:     bots,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		cache:    map[string]*tgbotapi.BotAPI{},
	}
}

// ForToken builds a client without the getMe round trip NewBotAPI performs.
func (c *Clients) ForToken(token string) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{Token: token, Client: c.http, Buffer: 100}
	bot.SetAPIEndpoint(c.endpoint)
	return bot
}

func (c *Clients) Get(ctx context.Context, botID string) (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	bot, ok := c.cache[botID]
	c.mu.Unlock()
	if ok {
		return bot, nil
	}

	b, err := c.bots.Get(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("load bot %s: %w", botID, err)
	}
	bot = c.ForToken(b.Token)

	c.mu.Lock()
	c.cache[botID] = bot
	c.mu.Unlock()
	return bot, nil
}

// Forget drops a cached client, e.g. after the bot's token changed.
func (c *Clients) Forget(botID string) {
	c.mu.Lock()
	delete(c.cache, botID)
	c.mu.Unlock()
}

// request performs one Bot API call and converts failures to *domain.GatewayError.
func request(bot *tgbotapi.BotAPI, op string, cfg tgbotapi.Chattable) error {
	return call(op, func() error {
		_, err := bot.Request(cfg)
		return err
	})
}

// requestParams is request for calls whose fields the library config lacks.
func requestParams(bot *tgbotapi.BotAPI, op string, params tgbotapi.Params) error {
	return call(op, func() error {
		_, err := bot.MakeRequest(op, params)
		return err
	})
}

func call(op string, do func() error) error {
	start := time.Now()
	err := do()
	if err == nil {
		metrics.ObserveGatewayCall("telegram", op, http.StatusOK, start)
		return nil
	}
	ge := &domain.GatewayError{Gateway: "telegram", Op: op, Err: err}
	var (
		apiErr    *tgbotapi.Error
		apiErrVal tgbotapi.Error
	)
	switch {
	case errors.As(err, &apiErr):
		ge.StatusCode, ge.Message = apiErr.Code, apiErr.Message
	case errors.As(err, &apiErrVal):
		ge.StatusCode, ge.Message = apiErrVal.Code, apiErrVal.Message
	}
	metrics.ObserveGatewayCall("telegram", op, ge.StatusCode, start)
	return ge
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
