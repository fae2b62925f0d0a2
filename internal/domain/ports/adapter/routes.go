package adapter

import (
	"context"

	"github.com/khrabrovart/telebot/internal/domain/model"
)

// RouteGateway is the port for the external HTTP route registry.
type RouteGateway interface {
	// Create registers routeKey and returns the externally reachable URL.
	Create(ctx context.Context, routeKey, target string) (string, error)
	List(ctx context.Context) ([]model.Route, error)
	Delete(ctx context.Context, routeID string) error
}
