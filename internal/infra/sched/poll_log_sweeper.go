package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/infra/metrics"
)

// ExpiredLogPurger deletes poll logs whose TTL has passed.
type ExpiredLogPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PollLogSweeper periodically drops expired poll logs.
type PollLogSweeper struct {
	interval time.Duration
	logs     ExpiredLogPurger
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPollLogSweeper(interval time.Duration, logs ExpiredLogPurger, logger *zerolog.Logger) *PollLogSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "PollLogSweeper").Logger()
	return &PollLogSweeper{interval: interval, logs: logs, now: time.Now, log: &l}
}

func (w *PollLogSweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting poll log sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping poll log sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one purge pass.
func (w *PollLogSweeper) Sweep(ctx context.Context) int64 {
	n, err := w.logs.DeleteExpired(ctx, w.now())
	if err != nil {
		w.log.Error().Err(err).Msg("poll log sweep failed")
		return 0
	}
	if n > 0 {
		metrics.AddPollLogsExpired(n)
		w.log.Info().Int64("count", n).Msg("expired poll logs removed")
	}
	return n
}
