package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
)

var _ repository.PollEventLogRepository = (*PollEventLogRepo)(nil)

// PollEventLogRepo keeps each log as a JSON document with the version in its own
// column; writes are conditional on that column.
type PollEventLogRepo struct {
	pool *pgxpool.Pool
}

func NewPollEventLogRepo(pool *pgxpool.Pool) *PollEventLogRepo {
	return &PollEventLogRepo{pool: pool}
}

func (r *PollEventLogRepo) Get(ctx context.Context, pollID string) (*model.PollEventLog, error) {
	const q = `
SELECT body, version
  FROM poll_event_logs
 WHERE poll_id = $1 AND (expires_at IS NULL OR expires_at > now());
`
	var (
		body    []byte
		version int64
	)
	if err := r.pool.QueryRow(ctx, q, pollID).Scan(&body, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get poll log %s: %w", pollID, err)
	}
	var l model.PollEventLog
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("%w: poll log %s: %v", domain.ErrReadDatabaseRow, pollID, err)
	}
	l.Version = version
	return &l, nil
}

func (r *PollEventLogRepo) Create(ctx context.Context, l *model.PollEventLog) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal poll log %s: %w", l.PollID, err)
	}
	const q = `
INSERT INTO poll_event_logs (poll_id, posting_rule_id, body, version, expires_at)
VALUES ($1, $2, $3, $4, $5);
`
	_, err = r.pool.Exec(ctx, q, l.PollID, l.PostingRuleID, string(body), l.Version, l.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create poll log %s: %w", l.PollID, err)
	}
	return nil
}

func (r *PollEventLogRepo) Put(ctx context.Context, l *model.PollEventLog, expectedVersion int64) error {
	next := *l
	next.Version = expectedVersion + 1
	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal poll log %s: %w", l.PollID, err)
	}
	const q = `
UPDATE poll_event_logs
   SET body = $3, version = version + 1, expires_at = $4
 WHERE poll_id = $1 AND version = $2;
`
	tag, err := r.pool.Exec(ctx, q, l.PollID, expectedVersion, string(body), l.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put poll log %s: %w", l.PollID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// DeleteExpired removes logs whose TTL passed before the given time.
func (r *PollEventLogRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM poll_event_logs WHERE expires_at IS NOT NULL AND expires_at <= $1;`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired poll logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
