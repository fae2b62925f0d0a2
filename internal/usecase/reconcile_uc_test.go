//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/usecase"
)

var target = usecase.ScheduleTarget{
	Prefix:      "telebot-",
	TargetArn:   "arn:aws:lambda:posting",
	RoleArn:     "arn:aws:iam::role/scheduler",
	MaxEventAge: time.Minute,
}

func textRule(id string) *model.PostingRule {
	return &model.PostingRule{
		ID:       id,
		BotID:    "bot-1",
		ChatID:   -1001,
		Name:     "Morning",
		Schedule: "0 9 * * MON",
		Timezone: "Europe/Moscow",
		IsActive: true,
		Content:  model.TextContent{Text: "Good morning"},
	}
}

func TestReconcileUseCase_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a schedule for a valid active rule", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())

		if err := uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, textRule("r1"))); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		s, err := gw.Get(ctx, "telebot-r1")
		if err != nil {
			t.Fatalf("expected schedule, got %v", err)
		}
		if s.ScheduleExpression != "cron(0 9 * * MON)" || s.Timezone != "Europe/Moscow" || !s.Enabled() {
			t.Fatalf("unexpected schedule %+v", s)
		}
		if s.Target.Arn != target.TargetArn || s.Target.RetryPolicy.MaximumRetryAttempts != 0 || s.Target.RetryPolicy.MaximumEventAgeInSeconds != 60 {
			t.Fatalf("unexpected target %+v", s.Target)
		}
		var payload model.SchedulerEvent
		if err := json.Unmarshal([]byte(s.Target.Input), &payload); err != nil || payload.PostingRuleID != "r1" {
			t.Fatalf("unexpected payload %q (%v)", s.Target.Input, err)
		}
	})

	t.Run("should update the schedule when the rule changes", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		before := textRule("r1")
		after := textRule("r1")
		after.Schedule = "30 18 * * FRI"
		after.Timezone = "UTC"

		_ = uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, before))
		if err := uc.Reconcile(ctx, ruleChange(model.ChangeModify, before, after)); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		s, _ := gw.Get(ctx, "telebot-r1")
		if s.ScheduleExpression != "cron(30 18 * * FRI)" || s.Timezone != "UTC" {
			t.Fatalf("schedule not updated: %+v", s)
		}
		if len(gw.Names()) != 1 {
			t.Fatalf("expected exactly one schedule, got %v", gw.Names())
		}
	})

	t.Run("should remove the schedule of a deactivated rule, repeatedly", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		active := textRule("r1")
		inactive := textRule("r1")
		inactive.IsActive = false

		_ = uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, active))
		for i := 0; i < 2; i++ {
			if err := uc.Reconcile(ctx, ruleChange(model.ChangeModify, active, inactive)); err != nil {
				t.Fatalf("pass %d: %v", i, err)
			}
			if _, err := gw.Get(ctx, "telebot-r1"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("pass %d: expected no schedule, got %v", i, err)
			}
		}
	})

	t.Run("should never send an invalid rule to the scheduler", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		bad := textRule("r1")
		bad.Schedule = "every monday"

		if err := uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, bad)); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		for _, op := range gw.calls {
			if op == "create" || op == "update" {
				t.Fatalf("invalid rule reached the gateway: %v", gw.calls)
			}
		}
		if len(gw.Names()) != 0 {
			t.Fatalf("expected no schedules, got %v", gw.Names())
		}
	})

	t.Run("should treat an unreadable image as absence", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		_ = uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, textRule("r1")))

		rec := model.ChangeRecord{Kind: model.ChangeModify, Key: "r1", After: []byte(`{"Type":"Carousel","Id":"r1"}`)}
		if err := uc.Reconcile(ctx, rec); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if len(gw.Names()) != 0 {
			t.Fatalf("expected schedule removed, got %v", gw.Names())
		}
	})

	t.Run("should succeed when removing twice", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		r := textRule("r1")
		_ = uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, r))

		for i := 0; i < 2; i++ {
			if err := uc.Reconcile(ctx, ruleChange(model.ChangeRemove, r, nil)); err != nil {
				t.Fatalf("remove %d: %v", i, err)
			}
		}
		if len(gw.Names()) != 0 {
			t.Fatalf("expected no schedules, got %v", gw.Names())
		}
	})

	t.Run("should propagate gateway failures", func(t *testing.T) {
		gw := newFlakyGateway()
		gw.failOp = "create"
		gw.err = &domain.GatewayError{Gateway: "scheduler", Op: "create", StatusCode: http.StatusServiceUnavailable}
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())

		err := uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, textRule("r1")))
		if !domain.IsGatewayFailure(err) {
			t.Fatalf("expected gateway failure, got %v", err)
		}
	})

	t.Run("should update when the schedule appeared after the existence check", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		_ = uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, textRule("r1")))

		gw.getMisses = true
		changed := textRule("r1")
		changed.Schedule = "0 10 * * TUE"
		if err := uc.Reconcile(ctx, ruleChange(model.ChangeModify, textRule("r1"), changed)); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		gw.getMisses = false
		s, _ := gw.Get(ctx, "telebot-r1")
		if s.ScheduleExpression != "cron(0 10 * * TUE)" {
			t.Fatalf("expected update after create conflict, got %+v", s)
		}
	})

	t.Run("should reject unknown event kinds", func(t *testing.T) {
		uc := usecase.NewReconcileUseCase(newFlakyGateway(), target, logging.Nop())
		err := uc.Reconcile(ctx, model.ChangeRecord{Kind: "TTL", Key: "r1"})
		if !errors.Is(err, domain.ErrUnknownEventKind) {
			t.Fatalf("expected ErrUnknownEventKind, got %v", err)
		}
	})

	// Records are applied in delivery order; a stale MODIFY delivered after a
	// REMOVE brings the schedule back.
	t.Run("should apply the last delivered record for a rule", func(t *testing.T) {
		gw := newFlakyGateway()
		uc := usecase.NewReconcileUseCase(gw, target, logging.Nop())
		r := textRule("r1")

		_ = uc.Reconcile(ctx, ruleChange(model.ChangeInsert, nil, r))
		_ = uc.Reconcile(ctx, ruleChange(model.ChangeRemove, r, nil))
		if err := uc.Reconcile(ctx, ruleChange(model.ChangeModify, r, r)); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if _, err := gw.Get(ctx, "telebot-r1"); err != nil {
			t.Fatalf("expected the stale modify to recreate the schedule, got %v", err)
		}
	})
}
