package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
)

var _ repository.ChangeFeed = (*ChangeFeed)(nil)

// ChangeFeed reads one feed from the change_records table.
type ChangeFeed struct {
	pool *pgxpool.Pool
	feed string
}

func NewChangeFeed(pool *pgxpool.Pool, feed string) *ChangeFeed {
	return &ChangeFeed{pool: pool, feed: feed}
}

func (f *ChangeFeed) Name() string { return f.feed }

func (f *ChangeFeed) Read(ctx context.Context, afterSeq int64, limit int) ([]model.ChangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT seq, event_id, kind, key, old_image, new_image, created_at
  FROM change_records
 WHERE feed = $1 AND seq > $2
 ORDER BY seq
 LIMIT $3;
`
	rows, err := f.pool.Query(ctx, q, f.feed, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", f.feed, err)
	}
	defer rows.Close()

	var out []model.ChangeRecord
	for rows.Next() {
		var (
			rec           model.ChangeRecord
			kind          string
			before, after []byte
		)
		if err := rows.Scan(&rec.Seq, &rec.EventID, &kind, &rec.Key, &before, &after, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feed %s: %w", f.feed, err)
		}
		rec.Kind = model.ParseChangeKind(kind)
		rec.Before, rec.After = before, after
		out = append(out, rec)
	}
	return out, rows.Err()
}
