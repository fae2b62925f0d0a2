package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ RouteSyncUseCase = (*routeSyncUC)(nil)

// RouteSyncUseCase keeps one webhook route per bot.
type RouteSyncUseCase interface {
	// Sync returns the webhook URL when the record created a route.
	Sync(ctx context.Context, rec model.ChangeRecord) (string, error)
	RouteKey(botID string) string
}

// WebhookRegistrar points a bot at its webhook URL. Optional.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, bot *model.Bot, url string) error
}

type routeSyncUC struct {
	gw            adapter.RouteGateway
	registrar     WebhookRegistrar
	prefix        string
	integrationID string
	log           *zerolog.Logger
}

func NewRouteSyncUseCase(gw adapter.RouteGateway, registrar WebhookRegistrar, prefix, integrationID string, logger *zerolog.Logger) *routeSyncUC {
	l := logger.With().Str("component", "RouteSynchronizer").Logger()
	return &routeSyncUC{gw: gw, registrar: registrar, prefix: prefix, integrationID: integrationID, log: &l}
}

func (uc *routeSyncUC) RouteKey(botID string) string {
	return "POST " + uc.prefix + botID
}

func (uc *routeSyncUC) Sync(ctx context.Context, rec model.ChangeRecord) (string, error) {
	ctx = logging.WithBotID(ctx, rec.Key)
	log := logging.With(ctx, uc.log)

	switch rec.Kind {
	case model.ChangeInsert:
		bot, err := model.DecodeBot(rec.After)
		if err != nil {
			return "", &domain.ValidationError{Entity: "bot " + rec.Key, Issues: []string{err.Error()}}
		}
		if err := bot.Err(); err != nil {
			return "", err
		}
		url, err := uc.gw.Create(ctx, uc.RouteKey(bot.ID), "integrations/"+uc.integrationID)
		metrics.IncRouteSync("create", err)
		if err != nil {
			return "", fmt.Errorf("create route for bot %s: %w", bot.ID, err)
		}
		log.Info().Str("url", url).Msg("webhook route created")
		if uc.registrar != nil {
			if err := uc.registrar.SetWebhook(ctx, bot, url); err != nil {
				return url, fmt.Errorf("set webhook for bot %s: %w", bot.ID, err)
			}
		}
		return url, nil

	case model.ChangeRemove:
		id := rec.Key
		if bot, err := model.DecodeBot(rec.Before); err == nil && bot.ID != "" {
			id = bot.ID
		}
		if id == "" {
			return "", &domain.ValidationError{Entity: "change record " + rec.EventID, Issues: []string{"removed bot has no id"}}
		}
		err := uc.deleteRoute(ctx, id)
		metrics.IncRouteSync("delete", err)
		if err != nil {
			return "", err
		}
		log.Info().Msg("webhook route removed")
		return "", nil

	case model.ChangeModify:
		return "", nil

	default:
		metrics.IncRouteSync("rejected", domain.ErrUnknownEventKind)
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownEventKind, rec.Kind)
	}
}

func (uc *routeSyncUC) deleteRoute(ctx context.Context, botID string) error {
	key := uc.RouteKey(botID)
	routes, err := uc.gw.List(ctx)
	if err != nil {
		return fmt.Errorf("list routes: %w", err)
	}
	for _, r := range routes {
		if r.Key != key {
			continue
		}
		if err := uc.gw.Delete(ctx, r.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete route %s: %w", r.ID, err)
		}
		return nil
	}
	return nil
}
