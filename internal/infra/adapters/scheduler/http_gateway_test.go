//go:build !integration

package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
)

// fakeSchedulerAPI serves the subset of the scheduler REST API the gateway uses.
type fakeSchedulerAPI struct {
	mu        sync.Mutex
	schedules map[string]model.Schedule
	authSeen  string
}

func (f *fakeSchedulerAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authSeen = r.Header.Get("Authorization")

	const prefix = "/groups/default/schedules/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, prefix)
	s, exists := f.schedules[name]

	switch r.Method {
	case http.MethodGet:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "ResourceNotFoundException", "message": "no such schedule"})
			return
		}
		_ = json.NewEncoder(w).Encode(s)
	case http.MethodPost, http.MethodPut:
		if r.Method == http.MethodPost && exists {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "ConflictException"})
			return
		}
		var in model.Schedule
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.schedules[name] = in
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.schedules, name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestGateway(t *testing.T, h http.Handler) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gw, err := NewHTTPGateway(srv.URL, "secret", "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPGateway: %v", err)
	}
	return gw
}

func TestHTTPGateway(t *testing.T) {
	ctx := context.Background()
	desired := &model.Schedule{
		Name:               "telebot-r1",
		ScheduleExpression: "cron(0 9 * * MON)",
		Timezone:           "Europe/Moscow",
		State:              model.ScheduleEnabled,
		Target:             model.ScheduleTarget{Arn: "arn:posting", Input: `{"PostingRuleId":"r1"}`},
	}

	t.Run("should create, read back and delete a schedule", func(t *testing.T) {
		api := &fakeSchedulerAPI{schedules: map[string]model.Schedule{}}
		gw := newTestGateway(t, api)

		if err := gw.Create(ctx, desired); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, err := gw.Get(ctx, desired.Name)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ScheduleExpression != desired.ScheduleExpression || got.Timezone != desired.Timezone || !got.Enabled() {
			t.Fatalf("unexpected schedule: %+v", got)
		}
		if api.authSeen != "Bearer secret" {
			t.Fatalf("expected bearer auth, got %q", api.authSeen)
		}
		if err := gw.Delete(ctx, desired.Name); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})

	t.Run("should map 404 to ErrNotFound", func(t *testing.T) {
		gw := newTestGateway(t, &fakeSchedulerAPI{schedules: map[string]model.Schedule{}})
		_, err := gw.Get(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		var ge *domain.GatewayError
		if !errors.As(err, &ge) || ge.Code != "ResourceNotFoundException" {
			t.Fatalf("expected gateway error with code, got %v", err)
		}
	})

	t.Run("should map 409 to ErrAlreadyExists", func(t *testing.T) {
		api := &fakeSchedulerAPI{schedules: map[string]model.Schedule{desired.Name: *desired}}
		gw := newTestGateway(t, api)
		if err := gw.Create(ctx, desired); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("should surface server errors as gateway failures", func(t *testing.T) {
		gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "throttled", http.StatusServiceUnavailable)
		}))
		err := gw.Update(ctx, desired)
		var ge *domain.GatewayError
		if !errors.As(err, &ge) || ge.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 gateway error, got %v", err)
		}
		if errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("503 must not read as not found")
		}
	})
}

func TestMemoryGateway(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()
	s := &model.Schedule{Name: "a", State: model.ScheduleEnabled}

	t.Run("should reject duplicate create with a conflict", func(t *testing.T) {
		if err := gw.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		err := gw.Create(ctx, s)
		var ge *domain.GatewayError
		if !errors.As(err, &ge) || ge.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %v", err)
		}
	})

	t.Run("should report missing schedules as not found", func(t *testing.T) {
		if err := gw.Delete(ctx, "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := gw.Delete(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(gw.Names()) != 0 {
			t.Fatalf("expected empty gateway, got %v", gw.Names())
		}
	})
}
