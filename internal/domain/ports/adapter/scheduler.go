package adapter

import (
	"context"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

// ScheduleGateway is the port for the external cron scheduler.
// Failures are *domain.GatewayError; Get returns domain.ErrNotFound for a missing name.
type ScheduleGateway interface {
	Get(ctx context.Context, name string) (*model.Schedule, error)
	Create(ctx context.Context, s *model.Schedule) error
	Update(ctx context.Context, s *model.Schedule) error
	Delete(ctx context.Context, name string) error
}
