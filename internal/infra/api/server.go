package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/infra/api/apiv1"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
)

type RouterDeps struct {
	Webhook       http.Handler
	API           *apiv1.Server
	Auth          *Authenticator
	WebhookPrefix string
	Timeout       time.Duration
}

// NewRouter builds the public surface: health, metrics, bot webhooks and
// the token-protected management API.
func NewRouter(deps RouterDeps, logger *zerolog.Logger) *chi.Mux {
	if deps.WebhookPrefix == "" {
		deps.WebhookPrefix = "/webhook/"
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(logger), Recover(logger), Timeout(deps.Timeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Method(http.MethodPost, deps.WebhookPrefix+"{botID}", deps.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAdmin())
		apiv1.RegisterAPIV1(r, deps.API)
	})
	return r
}

type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(port int, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
