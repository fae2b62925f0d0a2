package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
)

var _ repository.CursorStore = (*CursorStore)(nil)

// CursorStore keeps feed positions in Redis without expiry.
type CursorStore struct {
	client RedisClient
}

func NewCursorStore(client RedisClient) *CursorStore {
	return &CursorStore{client: client}
}

func cursorKey(feed string) string { return "telebot:feed-cursor:" + feed }

// Load returns 0 for a feed that was never saved.
func (s *CursorStore) Load(ctx context.Context, feed string) (int64, error) {
	v, err := s.client.Get(ctx, cursorKey(feed))
	if IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor %s: %w", feed, err)
	}
	seq, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %s: %w", feed, err)
	}
	return seq, nil
}

func (s *CursorStore) Save(ctx context.Context, feed string, seq int64) error {
	if err := s.client.Set(ctx, cursorKey(feed), strconv.FormatInt(seq, 10), 0); err != nil {
		return fmt.Errorf("save cursor %s: %w", feed, err)
	}
	return nil
}
