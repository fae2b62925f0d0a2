//go:build !integration

package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func pollRule() *PostingRule {
	return &PostingRule{
		ID:       "r1",
		BotID:    "b1",
		ChatID:   -1001,
		Name:     "Weekly training",
		Schedule: "0 9 * * MON",
		Timezone: "Europe/Moscow",
		IsActive: true,
		Content:  PollContent{Question: "Coming on {next_monday}?", Options: []string{"Yes", "No"}},
		PollActionLog: &PollActionLogConfig{
			ChatID: -1002,
			Output: OnlyWhenTargetOptionRevoked(0),
		},
	}
}

// --- PostingRule Tests ---

func TestPostingRule_Validate(t *testing.T) {
	t.Run("should accept a complete poll rule", func(t *testing.T) {
		if issues := pollRule().Validate(); len(issues) != 0 {
			t.Fatalf("expected no issues, got %v", issues)
		}
	})

	t.Run("should report every broken invariant", func(t *testing.T) {
		r := &PostingRule{Schedule: "0 9 *", TopicID: intPtr(0), TTLHours: int64Ptr(-1)}
		issues := r.Validate()
		for _, want := range []string{"Id is empty", "BotId is empty", "ChatId is empty", "Name is empty",
			"Schedule must have 5 or 6 parts", "Timezone is empty", "TopicId is invalid", "TtlHours is invalid", "Content is empty"} {
			found := false
			for _, got := range issues {
				if got == want {
					found = true
				}
			}
			if !found {
				t.Errorf("expected issue %q in %v", want, issues)
			}
		}
	})

	t.Run("should check the timezone is known", func(t *testing.T) {
		for _, tc := range []struct {
			tz    string
			issue string
		}{
			{tz: "UTC"},
			{tz: "America/Argentina/Buenos_Aires"},
			{tz: "Mars/Olympus", issue: "Timezone is unknown"},
			{tz: "  ", issue: "Timezone is empty"},
		} {
			r := pollRule()
			r.Timezone = tc.tz
			issues := r.Validate()
			switch {
			case tc.issue == "" && len(issues) != 0:
				t.Errorf("%q: expected no issues, got %v", tc.tz, issues)
			case tc.issue != "" && (len(issues) != 1 || issues[0] != tc.issue):
				t.Errorf("%q: expected [%s], got %v", tc.tz, tc.issue, issues)
			}
		}
	})

	t.Run("should reject a log target option outside the poll", func(t *testing.T) {
		r := pollRule()
		r.PollActionLog.Output = OnlyWhenTargetOptionRevoked(5)
		if r.IsValid() {
			t.Fatal("expected rule to be invalid")
		}
		if !errors.Is(r.Err(), domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", r.Err())
		}
	})

	t.Run("should reject a poll log on a text rule", func(t *testing.T) {
		r := pollRule()
		r.Content = TextContent{Text: "hello"}
		r.PollActionLog.Output = AllOutput()
		if r.IsValid() {
			t.Fatal("expected rule to be invalid")
		}
	})

	t.Run("should keep validity independent of activity", func(t *testing.T) {
		r := pollRule()
		r.IsActive = false
		if !r.IsValid() || r.WantsSchedule() {
			t.Fatalf("inactive valid rule: valid=%v wants=%v", r.IsValid(), r.WantsSchedule())
		}
	})
}

func TestPostingRule_CronExpression(t *testing.T) {
	r := pollRule()
	r.Schedule = " 0 9 * * MON "
	if got := r.CronExpression(); got != "cron(0 9 * * MON)" {
		t.Fatalf("unexpected expression %q", got)
	}
}

func TestPostingRule_JSON(t *testing.T) {
	t.Run("should carry the content variant through the Type discriminator", func(t *testing.T) {
		b, err := json.Marshal(pollRule())
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(b), `"Type":"Poll"`) {
			t.Fatalf("expected discriminator in %s", b)
		}
		got, err := DecodePostingRule(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		poll, ok := got.Poll()
		if !ok || len(poll.Options) != 2 {
			t.Fatalf("expected poll content, got %#v", got.Content)
		}
	})

	t.Run("should reject unknown content types", func(t *testing.T) {
		_, err := DecodePostingRule([]byte(`{"Type":"Video","Id":"x"}`))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// --- PollEventLog Tests ---

func TestNewPollEventLog(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should copy display settings from the rule", func(t *testing.T) {
		r := pollRule()
		r.TTLHours = int64Ptr(24)
		l, err := NewPollEventLog(r, "p1", 10, 11, "Coming?", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.LogChatID != -1002 || l.Version != 0 || len(l.Records) != 0 {
			t.Fatalf("unexpected log %+v", l)
		}
		if l.ExpiresAt == nil || !l.ExpiresAt.Equal(now.Add(24*time.Hour)) {
			t.Fatalf("unexpected expiry %v", l.ExpiresAt)
		}
	})

	t.Run("should refuse rules without a poll log", func(t *testing.T) {
		r := pollRule()
		r.PollActionLog = nil
		if _, err := NewPollEventLog(r, "p1", 1, 2, "", now); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("should not modify the receiver when appending", func(t *testing.T) {
		l, _ := NewPollEventLog(pollRule(), "p1", 1, 2, "", now)
		next := l.WithRecord(PollEventRecord{VoterID: 1, Timestamp: now})
		if len(l.Records) != 0 || len(next.Records) != 1 {
			t.Fatalf("expected copy-on-append, got %d and %d", len(l.Records), len(next.Records))
		}
	})

	t.Run("should fall back to UTC for unknown zones", func(t *testing.T) {
		l := &PollEventLog{Timezone: "Mars/Olympus"}
		if l.Location() != time.UTC {
			t.Fatalf("expected UTC, got %v", l.Location())
		}
	})
}

func TestPollEventRecord_DisplayName(t *testing.T) {
	r := PollEventRecord{FirstName: "Ann", LastName: "Lee", Username: "annlee"}
	if got := r.DisplayName(); got != "Ann Lee (@annlee)" {
		t.Fatalf("unexpected name %q", got)
	}
	if !r.Revoked() {
		t.Fatal("record without option must read as revoked")
	}
}

func TestParseChangeKind(t *testing.T) {
	if k := ParseChangeKind(" modify "); k != ChangeModify || !k.Known() {
		t.Fatalf("unexpected kind %q", k)
	}
	if ParseChangeKind("TTL").Known() {
		t.Fatal("TTL must not be a known kind")
	}
}
