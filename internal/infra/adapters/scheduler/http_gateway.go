package scheduler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/adapters/restclient"
)

var _ adapter.ScheduleGateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the scheduler's REST API. Schedules live under
// /groups/{group}/schedules/{name}.
type HTTPGateway struct {
	client *restclient.Client
	group  string
}

func NewHTTPGateway(baseURL, apiKey, group string, timeout time.Duration) (*HTTPGateway, error) {
	c, err := restclient.New("scheduler", baseURL, apiKey, timeout)
	if err != nil {
		return nil, err
	}
	if group == "" {
		group = "default"
	}
	return &HTTPGateway{client: c, group: group}, nil
}

// WithHTTPClient swaps the transport (tests).
func (g *HTTPGateway) WithHTTPClient(hc *http.Client) *HTTPGateway {
	g.client.WithHTTPClient(hc)
	return g
}

func (g *HTTPGateway) path(name string) string {
	return "/groups/" + url.PathEscape(g.group) + "/schedules/" + url.PathEscape(name)
}

func (g *HTTPGateway) Get(ctx context.Context, name string) (*model.Schedule, error) {
	var s model.Schedule
	if err := g.client.Do(ctx, "get", http.MethodGet, g.path(name), nil, &s); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = name
	}
	return &s, nil
}

func (g *HTTPGateway) Create(ctx context.Context, s *model.Schedule) error {
	return g.client.Do(ctx, "create", http.MethodPost, g.path(s.Name), s, nil)
}

func (g *HTTPGateway) Update(ctx context.Context, s *model.Schedule) error {
	return g.client.Do(ctx, "update", http.MethodPut, g.path(s.Name), s, nil)
}

func (g *HTTPGateway) Delete(ctx context.Context, name string) error {
	return g.client.Do(ctx, "delete", http.MethodDelete, g.path(name), nil, nil)
}
