package scheduler

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
)

var _ adapter.ScheduleGateway = (*MemoryGateway)(nil)

// MemoryGateway keeps schedules in process. Used in dev mode and tests; it
// reports errors with the same shapes as the HTTP gateway.
type MemoryGateway struct {
	mu        sync.RWMutex
	schedules map[string]model.Schedule
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{schedules: map[string]model.Schedule{}}
}

func notFound(op, name string) error {
	return &domain.GatewayError{Gateway: "scheduler", Op: op, StatusCode: http.StatusNotFound, Message: "schedule " + name + " does not exist", Err: domain.ErrNotFound}
}

func (g *MemoryGateway) Get(_ context.Context, name string) (*model.Schedule, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.schedules[name]
	if !ok {
		return nil, notFound("get", name)
	}
	return &s, nil
}

func (g *MemoryGateway) Create(_ context.Context, s *model.Schedule) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.schedules[s.Name]; ok {
		return &domain.GatewayError{Gateway: "scheduler", Op: "create", StatusCode: http.StatusConflict, Code: "ConflictException", Err: domain.ErrAlreadyExists}
	}
	g.schedules[s.Name] = *s
	return nil
}

func (g *MemoryGateway) Update(_ context.Context, s *model.Schedule) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.schedules[s.Name]; !ok {
		return notFound("update", s.Name)
	}
	g.schedules[s.Name] = *s
	return nil
}

func (g *MemoryGateway) Delete(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.schedules[name]; !ok {
		return notFound("delete", name)
	}
	delete(g.schedules, name)
	return nil
}

// Names lists stored schedule names in order.
func (g *MemoryGateway) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.schedules))
	for n := range g.schedules {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
