package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
)

// Feed names. Each store writes its change records under one of them.
const (
	FeedPostingRules = "posting_rules"
	FeedBots         = "bots"
)

// appendChange writes one change record inside tx. The advisory lock serialises
// writers of a feed so that seq order equals commit order.
func appendChange(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, feed string, kind model.ChangeKind, key string, before, after []byte) error {
	const lockSQL = `SELECT pg_advisory_xact_lock(hashtext($1));`
	if _, err := execSQL(ctx, pool, tx, lockSQL, feed); err != nil {
		return fmt.Errorf("lock feed %s: %w", feed, err)
	}
	const q = `
INSERT INTO change_records (event_id, feed, kind, key, old_image, new_image, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := execSQL(ctx, pool, tx, q,
		ulid.Make().String(), feed, string(kind), key, jsonbOrNil(before), jsonbOrNil(after), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append %s change for %s: %w", feed, key, err)
	}
	return nil
}

func jsonbOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func kindFor(before []byte) model.ChangeKind {
	if len(before) == 0 {
		return model.ChangeInsert
	}
	return model.ChangeModify
}

// sameImage reports whether two JSON images are semantically equal.
func sameImage(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	var x, y interface{}
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	ax, _ := json.Marshal(x)
	by, _ := json.Marshal(y)
	return string(ax) == string(by)
}
