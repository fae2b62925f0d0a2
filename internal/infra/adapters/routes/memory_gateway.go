package routes

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
)

var _ adapter.RouteGateway = (*MemoryGateway)(nil)

// MemoryGateway is an in-process route registry for dev mode and tests.
// Route keys are unique, as in the real registry.
type MemoryGateway struct {
	mu         sync.RWMutex
	routes     map[string]model.Route
	publicBase string
}

func NewMemoryGateway(publicBase string) *MemoryGateway {
	return &MemoryGateway{routes: map[string]model.Route{}, publicBase: publicBase}
}

func (g *MemoryGateway) Create(_ context.Context, routeKey, target string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.routes {
		if r.Key == routeKey {
			return "", &domain.GatewayError{Gateway: "routes", Op: "create", StatusCode: http.StatusConflict, Code: "ConflictException", Message: "route " + routeKey + " already exists", Err: domain.ErrAlreadyExists}
		}
	}
	id := uuid.NewString()
	g.routes[id] = model.Route{ID: id, Key: routeKey, Target: target}
	return PublicURL(g.publicBase, routeKey), nil
}

func (g *MemoryGateway) List(context.Context) ([]model.Route, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.Route, 0, len(g.routes))
	for _, r := range g.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (g *MemoryGateway) Delete(_ context.Context, routeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.routes[routeID]; !ok {
		return &domain.GatewayError{Gateway: "routes", Op: "delete", StatusCode: http.StatusNotFound, Err: domain.ErrNotFound}
	}
	delete(g.routes, routeID)
	return nil
}
