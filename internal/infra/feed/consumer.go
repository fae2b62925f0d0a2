// Package feed drains store change feeds into the reconcilers.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
	"github.com/khrabrovart/telebot/internal/infra/worker"
)

// ErrLeaseLost stops a drain whose lease could not be extended.
var ErrLeaseLost = errors.New("feed lease lost")

// Handler applies one change record.
type Handler func(ctx context.Context, rec model.ChangeRecord) error

// Locker grants an exclusive, expiring lease.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Refresh(ctx context.Context, key, token string, ttl time.Duration) error
	Unlock(ctx context.Context, key, token string) error
}

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	LockKey      string
	LockTTL      time.Duration
}

// Consumer polls a change feed and dispatches records through a keyed worker
// pool. The cursor only moves over a contiguous run of handled records, so a
// failed record and everything after it is delivered again on the next poll.
type Consumer struct {
	feed    repository.ChangeFeed
	cursors repository.CursorStore
	handle  Handler
	pool    *worker.Pool
	locker  Locker
	opts    Options
	log     *zerolog.Logger

	token string
}

// NewConsumer creates a consumer. locker may be nil when a single process runs.
func NewConsumer(feed repository.ChangeFeed, cursors repository.CursorStore, handle Handler, pool *worker.Pool, locker Locker, opts Options, logger *zerolog.Logger) *Consumer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.LockKey == "" {
		opts.LockKey = "telebot:feed-lock:" + feed.Name()
	}
	l := logger.With().Str("component", "FeedConsumer").Str("feed", feed.Name()).Logger()
	return &Consumer{feed: feed, cursors: cursors, handle: handle, pool: pool, locker: locker, opts: opts, log: &l}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Dur("interval", c.opts.PollInterval).Msg("starting feed consumer")
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	defer c.release()

	for {
		if err := c.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn().Err(err).Msg("feed drain stopped early")
		}
		select {
		case <-ctx.Done():
			c.log.Info().Msg("stopping feed consumer")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain handles every available record, stopping at the first one that must be retried.
func (c *Consumer) Drain(ctx context.Context) error {
	if ok, err := c.lease(ctx); !ok {
		return err
	}

	after, err := c.cursors.Load(ctx, c.feed.Name())
	if err != nil {
		return err
	}
	for first := true; ; first = false {
		if !first {
			if err := c.extend(ctx); err != nil {
				return err
			}
		}
		recs, err := c.feed.Read(ctx, after, c.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}

		acked, complete := c.dispatch(ctx, recs)
		if acked > after {
			if err := c.cursors.Save(ctx, c.feed.Name(), acked); err != nil {
				return err
			}
			metrics.SetFeedCursor(c.feed.Name(), acked)
			after = acked
		}
		if !complete || len(recs) < c.opts.BatchSize {
			return nil
		}
	}
}

// dispatch runs a batch and returns the last acknowledged seq and whether the
// whole batch was acknowledged.
func (c *Consumer) dispatch(ctx context.Context, recs []model.ChangeRecord) (int64, bool) {
	results := make([]error, len(recs))
	finished := make(chan struct{}, len(recs))
	pending := 0
	for i := range recs {
		i, rec := i, recs[i]
		err := c.pool.Submit(ctx, rec.Key, func(ctx context.Context) error {
			results[i] = c.handle(ctx, rec)
			finished <- struct{}{}
			return results[i]
		})
		if err != nil {
			results[i] = err
			continue
		}
		pending++
	}
	for ; pending > 0; pending-- {
		select {
		case <-finished:
		case <-ctx.Done():
			return 0, false
		}
	}

	var acked int64
	for i, rec := range recs {
		err := results[i]
		switch {
		case err == nil:
			metrics.IncFeedRecord(c.feed.Name(), "ok")
		case Permanent(err):
			metrics.IncFeedRecord(c.feed.Name(), "rejected")
			c.log.Error().Err(err).Int64("seq", rec.Seq).Str("key", rec.Key).Str("event", string(rec.Kind)).Msg("dropping change record")
		default:
			metrics.IncFeedRecord(c.feed.Name(), "error")
			c.log.Warn().Err(err).Int64("seq", rec.Seq).Str("key", rec.Key).Msg("change record will be retried")
			return acked, false
		}
		acked = rec.Seq
	}
	return acked, true
}

// Permanent reports errors that redelivery cannot fix.
func Permanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnknownEventKind)
}

func (c *Consumer) lease(ctx context.Context) (bool, error) {
	if c.locker == nil {
		return true, nil
	}
	if c.token != "" {
		err := c.locker.Refresh(ctx, c.opts.LockKey, c.token, c.opts.LockTTL)
		if err == nil {
			return true, nil
		}
		c.log.Warn().Err(err).Msg("feed lease lost")
		c.token = ""
	}
	token, err := c.locker.TryLock(ctx, c.opts.LockKey, c.opts.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.token = token
	c.log.Info().Msg("feed lease acquired")
	return true, nil
}

// extend refreshes a held lease between batches. A drain never re-acquires a
// lost lease mid-way: another process may have moved the cursor meanwhile.
func (c *Consumer) extend(ctx context.Context) error {
	if c.locker == nil || c.token == "" {
		return nil
	}
	if err := c.locker.Refresh(ctx, c.opts.LockKey, c.token, c.opts.LockTTL); err != nil {
		c.token = ""
		return fmt.Errorf("%w: %v", ErrLeaseLost, err)
	}
	return nil
}

func (c *Consumer) release() {
	if c.locker == nil || c.token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.locker.Unlock(ctx, c.opts.LockKey, c.token); err != nil {
		c.log.Warn().Err(err).Msg("release feed lease")
	}
	c.token = ""
}
