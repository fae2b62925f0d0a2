//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
)

func TestCursorStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should start at zero for an unknown feed", func(t *testing.T) {
		s := NewCursorStore(newMemClient())
		seq, err := s.Load(ctx, "posting_rules")
		if err != nil || seq != 0 {
			t.Fatalf("expected 0, nil; got %d, %v", seq, err)
		}
	})

	t.Run("should round trip a saved position", func(t *testing.T) {
		s := NewCursorStore(newMemClient())
		if err := s.Save(ctx, "bots", 42); err != nil {
			t.Fatalf("Save: %v", err)
		}
		seq, err := s.Load(ctx, "bots")
		if err != nil || seq != 42 {
			t.Fatalf("expected 42, got %d (%v)", seq, err)
		}
	})

	t.Run("should propagate redis failures", func(t *testing.T) {
		c := newMemClient()
		c.fail = errBoom
		if _, err := NewCursorStore(c).Load(ctx, "bots"); !errors.Is(err, errBoom) {
			t.Fatalf("expected wrapped failure, got %v", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(newMemClient())
	key := WebhookKey("b1")
	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(context.Background(), key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d: expected allowed, got %v %v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(context.Background(), key, 3, time.Minute); ok {
		t.Fatalf("expected the fourth call to be limited")
	}
}

type countingBots struct {
	calls int
	bot   *model.Bot
}

func (c *countingBots) Get(_ context.Context, id string) (*model.Bot, error) {
	c.calls++
	if c.bot == nil || c.bot.ID != id {
		return nil, domain.ErrNotFound
	}
	cp := *c.bot
	return &cp, nil
}
func (c *countingBots) Put(_ context.Context, b *model.Bot) error {
	c.bot = b
	return nil
}

func (c *countingBots) Delete(context.Context, string) error {
	c.bot = nil
	return nil
}

func TestBotRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	inner := &countingBots{bot: &model.Bot{ID: "b1", Token: "t1"}}
	repo := NewBotRepoCacheDecorator(inner, newMemClient(), time.Minute)

	t.Run("should serve repeated reads from cache", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			b, err := repo.Get(ctx, "b1")
			if err != nil || b.Token != "t1" {
				t.Fatalf("Get: %v %+v", err, b)
			}
		}
		if inner.calls != 1 {
			t.Fatalf("expected one store read, got %d", inner.calls)
		}
	})

	t.Run("should invalidate on put", func(t *testing.T) {
		if err := repo.Put(ctx, &model.Bot{ID: "b1", Token: "t2"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		b, err := repo.Get(ctx, "b1")
		if err != nil || b.Token != "t2" {
			t.Fatalf("expected fresh token, got %+v (%v)", b, err)
		}
	})

	t.Run("should not cache misses", func(t *testing.T) {
		if _, err := repo.Get(ctx, "zz"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
