package repository

import (
	"context"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

// PostingRuleRepository is the rule store. Every Put/Delete emits a change record.
type PostingRuleRepository interface {
	Get(ctx context.Context, id string) (*model.PostingRule, error)
	Scan(ctx context.Context) ([]*model.PostingRule, error)
	Put(ctx context.Context, rule *model.PostingRule) error
	Delete(ctx context.Context, id string) error
}
