package routes

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/adapters/restclient"
)

var _ adapter.RouteGateway = (*HTTPGateway)(nil)

// HTTPGateway manages routes of one API in the gateway's REST API.
type HTTPGateway struct {
	client     *restclient.Client
	apiID      string
	publicBase string
}

func NewHTTPGateway(baseURL, apiKey, apiID, publicBase string, timeout time.Duration) (*HTTPGateway, error) {
	c, err := restclient.New("routes", baseURL, apiKey, timeout)
	if err != nil {
		return nil, err
	}
	return &HTTPGateway{client: c, apiID: apiID, publicBase: publicBase}, nil
}

func (g *HTTPGateway) WithHTTPClient(hc *http.Client) *HTTPGateway {
	g.client.WithHTTPClient(hc)
	return g
}

func (g *HTTPGateway) routesPath() string {
	return "/apis/" + url.PathEscape(g.apiID) + "/routes"
}

type createRouteRequest struct {
	RouteKey string `json:"RouteKey"`
	Target   string `json:"Target"`
}

func (g *HTTPGateway) Create(ctx context.Context, routeKey, target string) (string, error) {
	var out model.Route
	if err := g.client.Do(ctx, "create", http.MethodPost, g.routesPath(), createRouteRequest{RouteKey: routeKey, Target: target}, &out); err != nil {
		return "", err
	}
	return PublicURL(g.publicBase, routeKey), nil
}

type listRoutesResponse struct {
	Items     []model.Route `json:"Items"`
	NextToken string        `json:"NextToken,omitempty"`
}

func (g *HTTPGateway) List(ctx context.Context) ([]model.Route, error) {
	var (
		all   []model.Route
		token string
	)
	for {
		path := g.routesPath()
		if token != "" {
			path += "?nextToken=" + url.QueryEscape(token)
		}
		var page listRoutesResponse
		if err := g.client.Do(ctx, "list", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}

func (g *HTTPGateway) Delete(ctx context.Context, routeID string) error {
	return g.client.Do(ctx, "delete", http.MethodDelete, g.routesPath()+"/"+url.PathEscape(routeID), nil, nil)
}
