package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
)

var _ repository.BotRepository = (*botRepoCacheDecorator)(nil)

// botRepoCacheDecorator caches bot documents for the webhook path.
type botRepoCacheDecorator struct {
	inner repository.BotRepository
	cache RedisClient
	ttl   time.Duration
}

func NewBotRepoCacheDecorator(inner repository.BotRepository, cache RedisClient, ttl time.Duration) repository.BotRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &botRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func botKey(id string) string { return "telebot:bot:" + id }

func (d *botRepoCacheDecorator) Get(ctx context.Context, id string) (*model.Bot, error) {
	if val, err := d.cache.Get(ctx, botKey(id)); err == nil {
		var bot model.Bot
		if json.Unmarshal([]byte(val), &bot) == nil {
			metrics.IncCacheRequest("bot", "hit")
			return &bot, nil
		}
	}

	metrics.IncCacheRequest("bot", "miss")
	bot, err := d.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(bot); err == nil {
		_ = d.cache.Set(ctx, botKey(id), b, d.ttl)
	}
	return bot, nil
}

func (d *botRepoCacheDecorator) Put(ctx context.Context, bot *model.Bot) error {
	err := d.inner.Put(ctx, bot)
	_ = d.cache.Del(ctx, botKey(bot.ID))
	return err
}

func (d *botRepoCacheDecorator) Delete(ctx context.Context, id string) error {
	err := d.inner.Delete(ctx, id)
	_ = d.cache.Del(ctx, botKey(id))
	return err
}
