package repository

import (
	"context"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

type BotRepository interface {
	Get(ctx context.Context, id string) (*model.Bot, error)
	Put(ctx context.Context, bot *model.Bot) error
	Delete(ctx context.Context, id string) error
}
