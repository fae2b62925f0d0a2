package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
	"github.com/khrabrovart/telebot/internal/infra/logging"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

// AdminUseCase manages posting rules and bots. Writes go through the stores,
// which record them on the change feed.
type AdminUseCase interface {
	ListRules(ctx context.Context) ([]*model.PostingRule, error)
	GetRule(ctx context.Context, id string) (*model.PostingRule, error)
	// SaveRule stores the rule. An empty ID gets a fresh one.
	SaveRule(ctx context.Context, rule *model.PostingRule) (*model.PostingRule, error)
	DeleteRule(ctx context.Context, id string) error
	SaveBot(ctx context.Context, bot *model.Bot) error
	DeleteBot(ctx context.Context, id string) error
}

type adminUC struct {
	rules repository.PostingRuleRepository
	bots  repository.BotRepository
	log   *zerolog.Logger
}

func NewAdminUseCase(rules repository.PostingRuleRepository, bots repository.BotRepository, logger *zerolog.Logger) *adminUC {
	l := logger.With().Str("component", "Admin").Logger()
	return &adminUC{rules: rules, bots: bots, log: &l}
}

func (uc *adminUC) ListRules(ctx context.Context) ([]*model.PostingRule, error) {
	rules, err := uc.rules.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan posting rules: %w", err)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (uc *adminUC) GetRule(ctx context.Context, id string) (*model.PostingRule, error) {
	return uc.rules.Get(ctx, id)
}

func (uc *adminUC) SaveRule(ctx context.Context, rule *model.PostingRule) (*model.PostingRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	ctx = logging.WithRuleID(ctx, rule.ID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "Admin.SaveRule")()

	if err := rule.Err(); err != nil {
		return nil, err
	}
	if err := uc.rules.Put(ctx, rule); err != nil {
		return nil, fmt.Errorf("put posting rule %s: %w", rule.ID, err)
	}
	log.Info().Bool("active", rule.IsActive).Msg("posting rule saved")
	return rule, nil
}

func (uc *adminUC) DeleteRule(ctx context.Context, id string) error {
	ctx = logging.WithRuleID(ctx, id)
	if err := uc.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete posting rule %s: %w", id, err)
	}
	logging.With(ctx, uc.log).Info().Msg("posting rule deleted")
	return nil
}

func (uc *adminUC) SaveBot(ctx context.Context, bot *model.Bot) error {
	ctx = logging.WithBotID(ctx, bot.ID)
	if err := bot.Err(); err != nil {
		return err
	}
	if err := uc.bots.Put(ctx, bot); err != nil {
		return fmt.Errorf("put bot %s: %w", bot.ID, err)
	}
	logging.With(ctx, uc.log).Info().Msg("bot saved")
	return nil
}

func (uc *adminUC) DeleteBot(ctx context.Context, id string) error {
	ctx = logging.WithBotID(ctx, id)
	if err := uc.bots.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete bot %s: %w", id, err)
	}
	logging.With(ctx, uc.log).Info().Msg("bot deleted")
	return nil
}
