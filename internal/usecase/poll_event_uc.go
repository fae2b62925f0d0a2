package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/repository"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/infra/metrics"
)

// Compile-time check
var _ PollEventUseCase = (*pollEventUC)(nil)

// PollEventUseCase appends vote events to poll logs and renders their view.
type PollEventUseCase interface {
	// RecordVote must not be called concurrently for the same poll within one
	// process; concurrent writers across processes are resolved by the store's CAS.
	RecordVote(ctx context.Context, pollID string, ev VoteEvent) (*RenderedLog, error)
	OpenLog(ctx context.Context, ruleID, pollID string, messageID, logMessageID int) (*RenderedLog, error)
}

type Voter struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// VoteEvent is one poll answer. Empty OptionIDs means the vote was revoked.
type VoteEvent struct {
	Voter     Voter
	OptionIDs []int
}

// RenderedLog is the display state of a poll log after a write.
type RenderedLog struct {
	PollID    string
	ChatID    int64
	TopicID   *int
	MessageID int
	Text      string
	Version   int64
	Records   int
}

type CASConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

type pollEventUC struct {
	logs  repository.PollEventLogRepository
	rules repository.PostingRuleRepository
	repl  *Replacements
	cas   CASConfig
	now   func() time.Time
	log   *zerolog.Logger
}

func NewPollEventUseCase(logs repository.PollEventLogRepository, rules repository.PostingRuleRepository, repl *Replacements, cas CASConfig, logger *zerolog.Logger) *pollEventUC {
	if cas.MaxAttempts < 1 {
		cas.MaxAttempts = 1
	}
	if cas.Delay <= 0 {
		cas.Delay = time.Millisecond
	}
	if repl == nil {
		repl = NewReplacements()
	}
	l := logger.With().Str("component", "PollEventAggregator").Logger()
	return &pollEventUC{logs: logs, rules: rules, repl: repl, cas: cas, now: time.Now, log: &l}
}

// WithClock replaces the timestamp source.
func (uc *pollEventUC) WithClock(now func() time.Time) *pollEventUC {
	uc.now = now
	return uc
}

func (uc *pollEventUC) RecordVote(ctx context.Context, pollID string, ev VoteEvent) (*RenderedLog, error) {
	ctx = logging.WithPollID(ctx, pollID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "PollEventAggregator.RecordVote")()

	var out *RenderedLog
	err := retry.Do(
		func() error {
			rendered, err := uc.appendOnce(ctx, pollID, ev)
			if err != nil {
				return err
			}
			out = rendered
			return nil
		},
		retry.Attempts(uint(uc.cas.MaxAttempts)),
		retry.Delay(uc.cas.Delay),
		retry.MaxDelay(uc.cas.Delay*10),
		retry.MaxJitter(uc.cas.Delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			metrics.IncCASConflict()
			log.Debug().Uint("attempt", n+1).Err(err).Msg("poll log changed concurrently; retrying")
		}),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrVersionConflict)
		}),
	)

	switch {
	case err == nil:
		metrics.IncVote("ok")
		log.Info().Int64("voter_id", ev.Voter.ID).Int64("version", out.Version).Msg("vote recorded")
		return out, nil
	case errors.Is(err, domain.ErrVersionConflict):
		metrics.IncVote("conflict_exhausted")
		log.Warn().Int("attempts", uc.cas.MaxAttempts).Msg("giving up on poll log write")
		return nil, fmt.Errorf("%w: poll %s after %d attempts", domain.ErrTooManyConflicts, pollID, uc.cas.MaxAttempts)
	default:
		metrics.IncVote(voteResult(err))
		log.Error().Err(err).Msg("record vote failed")
		return nil, err
	}
}

func voteResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrLogMissing):
		return "log_missing"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}

// appendOnce is one read-append-CAS round.
func (uc *pollEventUC) appendOnce(ctx context.Context, pollID string, ev VoteEvent) (*RenderedLog, error) {
	current, err := uc.logs.Get(ctx, pollID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: poll %s", domain.ErrLogMissing, pollID)
	}
	if err != nil {
		return nil, fmt.Errorf("get poll log %s: %w", pollID, err)
	}

	rule, poll, err := uc.pollRule(ctx, current.PostingRuleID)
	if err != nil {
		return nil, err
	}

	rec, err := uc.record(poll, ev)
	if err != nil {
		return nil, err
	}

	next := current.WithRecord(rec)
	if err := uc.logs.Put(ctx, next, current.Version); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	return uc.render(next, rule), nil
}

func (uc *pollEventUC) pollRule(ctx context.Context, ruleID string) (*model.PostingRule, model.PollContent, error) {
	rule, err := uc.rules.Get(ctx, ruleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, model.PollContent{}, fmt.Errorf("%w: posting rule %s is missing", domain.ErrInvalidState, ruleID)
	}
	if err != nil {
		return nil, model.PollContent{}, fmt.Errorf("get posting rule %s: %w", ruleID, err)
	}
	poll, ok := rule.Poll()
	if !ok {
		return nil, model.PollContent{}, fmt.Errorf("%w: posting rule %s is not a poll", domain.ErrInvalidState, ruleID)
	}
	return rule, poll, nil
}

// record builds the event record. Only the first selected option is kept.
func (uc *pollEventUC) record(poll model.PollContent, ev VoteEvent) (model.PollEventRecord, error) {
	rec := model.PollEventRecord{
		VoterID:   ev.Voter.ID,
		FirstName: ev.Voter.FirstName,
		LastName:  ev.Voter.LastName,
		Username:  ev.Voter.Username,
		Timestamp: uc.now().UTC(),
	}
	if len(ev.OptionIDs) == 0 {
		return rec, nil
	}
	id := ev.OptionIDs[0]
	text, ok := poll.OptionText(id)
	if !ok {
		return rec, fmt.Errorf("%w: option %d is out of range", domain.ErrInvalidState, id)
	}
	rec.OptionID = &id
	rec.OptionText = &text
	return rec, nil
}

func (uc *pollEventUC) OpenLog(ctx context.Context, ruleID, pollID string, messageID, logMessageID int) (*RenderedLog, error) {
	ctx = logging.WithPollID(logging.WithRuleID(ctx, ruleID), pollID)
	log := logging.With(ctx, uc.log)

	rule, poll, err := uc.pollRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	l, err := model.NewPollEventLog(rule, pollID, messageID, logMessageID, uc.repl.Apply(poll.Question, now), now)
	if err != nil {
		return nil, fmt.Errorf("open poll log %s: %w", pollID, err)
	}
	if err := uc.logs.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create poll log %s: %w", pollID, err)
	}
	log.Info().Msg("poll log opened")
	return uc.render(l, rule), nil
}

func (uc *pollEventUC) render(l *model.PollEventLog, rule *model.PostingRule) *RenderedLog {
	policy := model.AllOutput()
	if rule.PollActionLog != nil {
		policy = rule.PollActionLog.Output
	}
	return &RenderedLog{
		PollID:    l.PollID,
		ChatID:    l.LogChatID,
		TopicID:   l.LogTopicID,
		MessageID: l.LogMessageID,
		Text:      RenderLog(l, policy),
		Version:   l.Version,
		Records:   len(l.Records),
	}
}
