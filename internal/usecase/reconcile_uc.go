package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase converges the external scheduler to the posting rule store.
// It performs no retries: callers re-deliver failed change records.
type ReconcileUseCase interface {
	Reconcile(ctx context.Context, rec model.ChangeRecord) error
	ScheduleName(ruleID string) string
}

// ScheduleTarget is the fixed invocation every schedule points at.
type ScheduleTarget struct {
	Prefix      string
	TargetArn   string
	RoleArn     string
	MaxEventAge time.Duration
}

type reconcileUC struct {
	gw     adapter.ScheduleGateway
	target ScheduleTarget
	log    *zerolog.Logger
}

func NewReconcileUseCase(gw adapter.ScheduleGateway, target ScheduleTarget, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "Reconciler").Logger()
	return &reconcileUC{gw: gw, target: target, log: &l}
}

func (uc *reconcileUC) ScheduleName(ruleID string) string {
	return uc.target.Prefix + ruleID
}

func (uc *reconcileUC) Reconcile(ctx context.Context, rec model.ChangeRecord) error {
	ctx = logging.WithRuleID(ctx, rec.Key)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "Reconciler.Reconcile")()

	var (
		action string
		err    error
	)
	switch rec.Kind {
	case model.ChangeInsert, model.ChangeModify:
		action, err = uc.applyImage(ctx, log, rec)
	case model.ChangeRemove:
		id := rec.Key
		if rule, decErr := model.DecodePostingRule(rec.Before); decErr == nil && rule.ID != "" {
			id = rule.ID
		}
		if id == "" {
			return &domain.ValidationError{Entity: "change record " + rec.EventID, Issues: []string{"removed posting rule has no id"}}
		}
		action, err = uc.ensureAbsent(ctx, id)
	default:
		metrics.IncReconcile("rejected", domain.ErrUnknownEventKind)
		return fmt.Errorf("%w: %q", domain.ErrUnknownEventKind, rec.Kind)
	}

	metrics.IncReconcile(action, err)
	if err != nil {
		log.Error().Err(err).Str("event", string(rec.Kind)).Str("action", action).Msg("reconcile failed")
		return err
	}
	log.Info().Str("event", string(rec.Kind)).Str("action", action).Msg("schedule reconciled")
	return nil
}

// applyImage handles INSERT/MODIFY. Unreadable, invalid and inactive rules all
// mean the schedule must not exist.
func (uc *reconcileUC) applyImage(ctx context.Context, log *zerolog.Logger, rec model.ChangeRecord) (string, error) {
	rule, err := model.DecodePostingRule(rec.After)
	if err != nil {
		if rec.Key == "" {
			return "noop", &domain.ValidationError{Entity: "change record " + rec.EventID, Issues: []string{err.Error()}}
		}
		log.Warn().Err(err).Msg("unreadable posting rule image; removing schedule")
		return uc.ensureAbsent(ctx, rec.Key)
	}

	id := rule.ID
	if id == "" {
		id = rec.Key
	}
	if issues := rule.Validate(); len(issues) > 0 {
		log.Warn().Strs("issues", issues).Msg("posting rule is not valid; removing schedule")
		if id == "" {
			return "noop", rule.Err()
		}
		return uc.ensureAbsent(ctx, id)
	}
	if !rule.IsActive {
		return uc.ensureAbsent(ctx, id)
	}
	return uc.upsert(ctx, rule)
}

// DesiredSchedule is the schedule resource a valid, active rule maps to.
func (uc *reconcileUC) DesiredSchedule(rule *model.PostingRule) (*model.Schedule, error) {
	input, err := json.Marshal(model.SchedulerEvent{PostingRuleID: rule.ID})
	if err != nil {
		return nil, fmt.Errorf("marshal scheduler payload: %w", err)
	}
	return &model.Schedule{
		Name:               uc.ScheduleName(rule.ID),
		ScheduleExpression: rule.CronExpression(),
		Timezone:           rule.Timezone,
		State:              model.ScheduleEnabled,
		Target: model.ScheduleTarget{
			Arn:     uc.target.TargetArn,
			RoleArn: uc.target.RoleArn,
			Input:   string(input),
			RetryPolicy: model.RetryPolicy{
				MaximumRetryAttempts:     0,
				MaximumEventAgeInSeconds: int(uc.target.MaxEventAge / time.Second),
			},
		},
	}, nil
}

func (uc *reconcileUC) upsert(ctx context.Context, rule *model.PostingRule) (string, error) {
	desired, err := uc.DesiredSchedule(rule)
	if err != nil {
		return "noop", err
	}

	_, err = uc.gw.Get(ctx, desired.Name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		err = uc.gw.Create(ctx, desired)
		if err == nil {
			return "create", nil
		}
		if !isDuplicate(err) {
			return "create", fmt.Errorf("create schedule %s: %w", desired.Name, err)
		}
		// created concurrently since the existence check
	case err != nil:
		return "noop", fmt.Errorf("get schedule %s: %w", desired.Name, err)
	}

	if err := uc.gw.Update(ctx, desired); err != nil {
		return "update", fmt.Errorf("update schedule %s: %w", desired.Name, err)
	}
	return "update", nil
}

// ensureAbsent deletes the rule's schedule if present. A missing schedule is success.
func (uc *reconcileUC) ensureAbsent(ctx context.Context, ruleID string) (string, error) {
	name := uc.ScheduleName(ruleID)
	_, err := uc.gw.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return "noop", nil
	}
	if err != nil {
		return "noop", fmt.Errorf("get schedule %s: %w", name, err)
	}
	if err := uc.gw.Delete(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "delete", fmt.Errorf("delete schedule %s: %w", name, err)
	}
	return "delete", nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, domain.ErrAlreadyExists) {
		return true
	}
	var ge *domain.GatewayError
	return errors.As(err, &ge) && ge.StatusCode == 409
}
