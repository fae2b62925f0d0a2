// Package restclient is the JSON-over-HTTP transport shared by the external gateways.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
)

const maxErrorBody = 4 << 10

type Client struct {
	gateway string
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(gateway, baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%s: base url is empty", gateway)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		gateway: gateway,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// WithHTTPClient replaces the underlying client (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when non-nil).
// 404 and 409 wrap domain.ErrNotFound and domain.ErrAlreadyExists.
func (c *Client) Do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: marshal: %w", c.gateway, op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &domain.GatewayError{Gateway: c.gateway, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveGatewayCall(c.gateway, op, 0, start)
		return &domain.GatewayError{Gateway: c.gateway, Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveGatewayCall(c.gateway, op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		ge := &domain.GatewayError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && (eb.Code != "" || eb.Message != "") {
			ge.Code, ge.Message = eb.Code, eb.Message
		} else {
			ge.Message = strings.TrimSpace(string(raw))
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			ge.Err = domain.ErrNotFound
		case http.StatusConflict:
			ge.Err = domain.ErrAlreadyExists
		}
		return ge
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &domain.GatewayError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}
