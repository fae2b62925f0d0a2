package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
)

var _ repository.PostingRuleRepository = (*PostingRuleRepo)(nil)

// PostingRuleRepo stores rules as JSON documents. Put and Delete commit the
// row and its change record in one transaction.
type PostingRuleRepo struct {
	pool *pgxpool.Pool
	tx   repository.TransactionManager
}

func NewPostingRuleRepo(pool *pgxpool.Pool, tx repository.TransactionManager) *PostingRuleRepo {
	return &PostingRuleRepo{pool: pool, tx: tx}
}

func (r *PostingRuleRepo) Get(ctx context.Context, id string) (*model.PostingRule, error) {
	const q = `SELECT body FROM posting_rules WHERE id = $1;`
	var body []byte
	if err := pickRow(ctx, r.pool, repository.NoTX, q, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get posting rule %s: %w", id, err)
	}
	rule, err := model.DecodePostingRule(body)
	if err != nil {
		return nil, fmt.Errorf("%w: posting rule %s: %v", domain.ErrReadDatabaseRow, id, err)
	}
	return rule, nil
}

func (r *PostingRuleRepo) Scan(ctx context.Context) ([]*model.PostingRule, error) {
	const q = `SELECT id, body FROM posting_rules ORDER BY id;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("scan posting rules: %w", err)
	}
	defer rows.Close()

	var out []*model.PostingRule
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		rule, err := model.DecodePostingRule(body)
		if err != nil {
			return nil, fmt.Errorf("%w: posting rule %s: %v", domain.ErrReadDatabaseRow, id, err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Put upserts rule. Storing an identical document emits no change record.
func (r *PostingRuleRepo) Put(ctx context.Context, rule *model.PostingRule) error {
	if rule == nil || rule.ID == "" {
		return domain.ErrInvalidArgument
	}
	body, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal posting rule %s: %w", rule.ID, err)
	}
	return r.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		before, err := lockedBody(ctx, r.pool, tx, `SELECT body FROM posting_rules WHERE id = $1 FOR UPDATE;`, rule.ID)
		if err != nil {
			return err
		}
		if sameImage(before, body) {
			return nil
		}
		const q = `
INSERT INTO posting_rules (id, bot_id, body, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE
  SET bot_id     = EXCLUDED.bot_id,
      body       = EXCLUDED.body,
      updated_at = EXCLUDED.updated_at;
`
		if _, err := execSQL(ctx, r.pool, tx, q, rule.ID, rule.BotID, string(body)); err != nil {
			return fmt.Errorf("put posting rule %s: %w", rule.ID, err)
		}
		return appendChange(ctx, r.pool, tx, FeedPostingRules, kindFor(before), rule.ID, before, body)
	})
}

func (r *PostingRuleRepo) Delete(ctx context.Context, id string) error {
	return r.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		before, err := lockedBody(ctx, r.pool, tx, `SELECT body FROM posting_rules WHERE id = $1 FOR UPDATE;`, id)
		if err != nil {
			return err
		}
		if before == nil {
			return domain.ErrNotFound
		}
		if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM posting_rules WHERE id = $1;`, id); err != nil {
			return fmt.Errorf("delete posting rule %s: %w", id, err)
		}
		return appendChange(ctx, r.pool, tx, FeedPostingRules, model.ChangeRemove, id, before, nil)
	})
}

// lockedBody returns the current document or nil when the row is absent.
func lockedBody(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q, id string) ([]byte, error) {
	var body []byte
	err := pickRow(ctx, pool, tx, q, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return body, nil
}
