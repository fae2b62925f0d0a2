package repository

import (
	"context"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

// PollEventLogRepository stores poll logs under optimistic concurrency.
type PollEventLogRepository interface {
	// Get returns domain.ErrNotFound when no log exists for pollID.
	Get(ctx context.Context, pollID string) (*model.PollEventLog, error)
	// Create stores a new log; domain.ErrAlreadyExists if one is present.
	Create(ctx context.Context, log *model.PollEventLog) error
	// Put writes log only if the stored version still equals expectedVersion,
	// storing expectedVersion+1. Otherwise it returns domain.ErrVersionConflict.
	Put(ctx context.Context, log *model.PollEventLog, expectedVersion int64) error
}
