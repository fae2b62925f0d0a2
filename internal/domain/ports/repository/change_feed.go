package repository

import (
	"context"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

// ChangeFeed reads a store's change records in commit order.
type ChangeFeed interface {
	Name() string
	Read(ctx context.Context, afterSeq int64, limit int) ([]model.ChangeRecord, error)
}

// CursorStore remembers the last handled sequence number per feed.
type CursorStore interface {
	Load(ctx context.Context, feed string) (int64, error)
	Save(ctx context.Context, feed string, seq int64) error
}
