//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/domain/ports/adapter"
	"github.com/khrabrovart/telebot/internal/infra/adapters/scheduler"
)

// -----------------------------
// Rule store
// -----------------------------

type memRuleRepo struct {
	mu    sync.RWMutex
	rules map[string]*model.PostingRule
}

func newMemRuleRepo(rules ...*model.PostingRule) *memRuleRepo {
	m := &memRuleRepo{rules: map[string]*model.PostingRule{}}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

func (m *memRuleRepo) Get(_ context.Context, id string) (*model.PostingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRuleRepo) Scan(context.Context) ([]*model.PostingRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.PostingRule, 0, len(m.rules))
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRuleRepo) Put(_ context.Context, r *model.PostingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memRuleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

// -----------------------------
// Poll log store with CAS
// -----------------------------

type memLogRepo struct {
	mu   sync.Mutex
	logs map[string]*model.PollEventLog

	afterGet       func()
	alwaysConflict bool
	puts           int
	conflicts      int
}

func newMemLogRepo() *memLogRepo {
	return &memLogRepo{logs: map[string]*model.PollEventLog{}}
}

func clone(l *model.PollEventLog) *model.PollEventLog {
	cp := *l
	cp.Records = append([]model.PollEventRecord(nil), l.Records...)
	return &cp
}

func (m *memLogRepo) Get(_ context.Context, pollID string) (*model.PollEventLog, error) {
	m.mu.Lock()
	l, ok := m.logs[pollID]
	var out *model.PollEventLog
	if ok {
		out = clone(l)
	}
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.afterGet != nil {
		m.afterGet()
	}
	return out, nil
}

func (m *memLogRepo) Create(_ context.Context, l *model.PollEventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.logs[l.PollID]; ok {
		return domain.ErrAlreadyExists
	}
	m.logs[l.PollID] = clone(l)
	return nil
}

func (m *memLogRepo) Put(_ context.Context, l *model.PollEventLog, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	cur, ok := m.logs[l.PollID]
	if m.alwaysConflict || !ok || cur.Version != expected {
		m.conflicts++
		return domain.ErrVersionConflict
	}
	next := clone(l)
	next.Version = expected + 1
	m.logs[l.PollID] = next
	return nil
}

func (m *memLogRepo) stored(pollID string) *model.PollEventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.logs[pollID])
}

// -----------------------------
// Schedule gateway with failure injection
// -----------------------------

type flakyScheduleGateway struct {
	*scheduler.MemoryGateway
	failOp string
	err    error
	// getMisses makes Get report NotFound even when the schedule exists.
	getMisses bool
	calls     []string
}

var _ adapter.ScheduleGateway = (*flakyScheduleGateway)(nil)

func newFlakyGateway() *flakyScheduleGateway {
	return &flakyScheduleGateway{MemoryGateway: scheduler.NewMemoryGateway()}
}

func (g *flakyScheduleGateway) fail(op string) error {
	g.calls = append(g.calls, op)
	if g.failOp == op {
		return g.err
	}
	return nil
}

func (g *flakyScheduleGateway) Get(ctx context.Context, name string) (*model.Schedule, error) {
	if err := g.fail("get"); err != nil {
		return nil, err
	}
	if g.getMisses {
		return nil, domain.ErrNotFound
	}
	return g.MemoryGateway.Get(ctx, name)
}

func (g *flakyScheduleGateway) Create(ctx context.Context, s *model.Schedule) error {
	if err := g.fail("create"); err != nil {
		return err
	}
	return g.MemoryGateway.Create(ctx, s)
}

func (g *flakyScheduleGateway) Update(ctx context.Context, s *model.Schedule) error {
	if err := g.fail("update"); err != nil {
		return err
	}
	return g.MemoryGateway.Update(ctx, s)
}

func (g *flakyScheduleGateway) Delete(ctx context.Context, name string) error {
	if err := g.fail("delete"); err != nil {
		return err
	}
	return g.MemoryGateway.Delete(ctx, name)
}

// -----------------------------
// Helpers
// -----------------------------

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func image(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func ruleChange(kind model.ChangeKind, before, after *model.PostingRule) model.ChangeRecord {
	rec := model.ChangeRecord{EventID: "ev", Kind: kind}
	if before != nil {
		rec.Key = before.ID
		rec.Before = image(before)
	}
	if after != nil {
		rec.Key = after.ID
		rec.After = image(after)
	}
	return rec
}

func pollRule(id string, output model.OutputPolicy) *model.PostingRule {
	return &model.PostingRule{
		ID:       id,
		BotID:    "bot-1",
		ChatID:   -1001,
		Name:     "Training",
		Schedule: "0 9 * * MON",
		Timezone: "Europe/Moscow",
		IsActive: true,
		Content:  model.PollContent{Question: "Training on {next_monday}?", Options: []string{"Yes", "No", "Maybe"}},
		PollActionLog: &model.PollActionLogConfig{
			ChatID: -1002,
			Output: output,
		},
	}
}
