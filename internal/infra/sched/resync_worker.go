package sched

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
	"github.com/khrabrovart/telebot/internal/infra/worker"
	"github.com/khrabrovart/telebot/internal/usecase"
)

// ResyncWorker periodically replays every stored rule through the reconciler,
// repairing schedules that drifted outside the change feed.
//
// Replays go through the same keyed pool as the rule feed, so a replay and a
// feed record for one rule never run concurrently, and each replay re-reads
// the rule so a deletion since the scan turns into a removal.
type ResyncWorker struct {
	uc       usecase.ReconcileUseCase
	rules    repository.PostingRuleRepository
	pool     *worker.Pool
	interval time.Duration
	log      *zerolog.Logger
}

func NewResyncWorker(uc usecase.ReconcileUseCase, rules repository.PostingRuleRepository, pool *worker.Pool, interval time.Duration, logger *zerolog.Logger) *ResyncWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "ResyncWorker").Logger()
	return &ResyncWorker{uc: uc, rules: rules, pool: pool, interval: interval, log: &l}
}

func (w *ResyncWorker) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick reconciles every rule once and returns how many failed.
func (w *ResyncWorker) Tick(ctx context.Context) int {
	rules, err := w.rules.Scan(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("resync: scan rules")
		return 0
	}

	results := make(chan error, len(rules))
	pending, failed := 0, 0
	for _, r := range rules {
		id := r.ID
		err := w.pool.Submit(ctx, id, func(ctx context.Context) error {
			err := w.replay(ctx, id)
			results <- err
			return err
		})
		if err != nil {
			failed++
			continue
		}
		pending++
	}
	for ; pending > 0; pending-- {
		select {
		case err := <-results:
			if err != nil {
				failed++
			}
		case <-ctx.Done():
			return failed
		}
	}
	w.log.Info().Int("rules", len(rules)).Int("failed", failed).Msg("resync finished")
	return failed
}

// replay reconciles the rule as currently stored.
func (w *ResyncWorker) replay(ctx context.Context, id string) error {
	rec := model.ChangeRecord{EventID: "resync", Key: id, CreatedAt: time.Now().UTC()}
	rule, err := w.rules.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec.Kind = model.ChangeRemove
	case err != nil:
		w.log.Warn().Err(err).Str("rule_id", id).Msg("resync: load rule")
		return err
	default:
		image, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		rec.Kind, rec.After = model.ChangeModify, image
	}
	if err := w.uc.Reconcile(ctx, rec); err != nil {
		w.log.Warn().Err(err).Str("rule_id", id).Msg("resync: reconcile failed")
		return err
	}
	return nil
}
