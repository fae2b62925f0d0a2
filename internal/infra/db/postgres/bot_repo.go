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

var _ repository.BotRepository = (*BotRepo)(nil)

// TokenSealer encrypts bot tokens before they reach the table or the change feed.
type TokenSealer interface {
	Seal(plain string) (string, error)
	Open(value string) (string, error)
}

type BotRepo struct {
	pool   *pgxpool.Pool
	tx     repository.TransactionManager
	sealer TokenSealer
}

func NewBotRepo(pool *pgxpool.Pool, tx repository.TransactionManager) *BotRepo {
	return &BotRepo{pool: pool, tx: tx}
}

// WithSealer stores tokens sealed. Rows written without a sealer still read.
func (r *BotRepo) WithSealer(s TokenSealer) *BotRepo {
	r.sealer = s
	return r
}

func (r *BotRepo) Get(ctx context.Context, id string) (*model.Bot, error) {
	var body []byte
	if err := pickRow(ctx, r.pool, repository.NoTX, `SELECT body FROM bots WHERE id = $1;`, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get bot %s: %w", id, err)
	}
	bot, err := r.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: bot %s: %v", domain.ErrReadDatabaseRow, id, err)
	}
	return bot, nil
}

func (r *BotRepo) decode(body []byte) (*model.Bot, error) {
	bot, err := model.DecodeBot(body)
	if err != nil || r.sealer == nil {
		return bot, err
	}
	if bot.Token, err = r.sealer.Open(bot.Token); err != nil {
		return nil, err
	}
	return bot, nil
}

// encode returns the stored document. Equal to before when only the nonce would change.
func (r *BotRepo) encode(bot *model.Bot, before []byte) ([]byte, error) {
	if r.sealer == nil {
		return json.Marshal(bot)
	}
	if len(before) > 0 {
		if prev, err := r.decode(before); err == nil {
			plainPrev, _ := json.Marshal(prev)
			plainNext, _ := json.Marshal(bot)
			if sameImage(plainPrev, plainNext) {
				return before, nil
			}
		}
	}
	sealed := *bot
	tok, err := r.sealer.Seal(bot.Token)
	if err != nil {
		return nil, err
	}
	sealed.Token = tok
	return json.Marshal(&sealed)
}

func (r *BotRepo) Put(ctx context.Context, bot *model.Bot) error {
	if err := bot.Err(); err != nil {
		return err
	}
	return r.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		before, err := lockedBody(ctx, r.pool, tx, `SELECT body FROM bots WHERE id = $1 FOR UPDATE;`, bot.ID)
		if err != nil {
			return err
		}
		body, err := r.encode(bot, before)
		if err != nil {
			return fmt.Errorf("encode bot %s: %w", bot.ID, err)
		}
		if sameImage(before, body) {
			return nil
		}
		const q = `
INSERT INTO bots (id, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE
  SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at;
`
		if _, err := execSQL(ctx, r.pool, tx, q, bot.ID, string(body)); err != nil {
			return fmt.Errorf("put bot %s: %w", bot.ID, err)
		}
		return appendChange(ctx, r.pool, tx, FeedBots, kindFor(before), bot.ID, before, body)
	})
}

func (r *BotRepo) Delete(ctx context.Context, id string) error {
	return r.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		before, err := lockedBody(ctx, r.pool, tx, `SELECT body FROM bots WHERE id = $1 FOR UPDATE;`, id)
		if err != nil {
			return err
		}
		if before == nil {
			return domain.ErrNotFound
		}
		if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM bots WHERE id = $1;`, id); err != nil {
			return fmt.Errorf("delete bot %s: %w", id, err)
		}
		return appendChange(ctx, r.pool, tx, FeedBots, model.ChangeRemove, id, before, nil)
	})
}
