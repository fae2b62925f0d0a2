package model

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/khrabrovart/telebot/internal/domain"
)

// PollEventRecord is one voter action. Records are append-only.
// A nil OptionID means the vote was revoked.
type PollEventRecord struct {
	VoterID    int64     `json:"ActorId"`
	FirstName  string    `json:"ActorFirstName"`
	LastName   string    `json:"ActorLastName,omitempty"`
	Username   string    `json:"ActorUsername,omitempty"`
	OptionID   *int      `json:"OptionId,omitempty"`
	OptionText *string   `json:"OptionText,omitempty"`
	Timestamp  time.Time `json:"Timestamp"`
}

func (r PollEventRecord) Revoked() bool { return r.OptionID == nil }

// Selects reports whether the record selects optionID.
func (r PollEventRecord) Selects(optionID int) bool {
	return r.OptionID != nil && *r.OptionID == optionID
}

// DisplayName is "First Last (@username)" with empty parts dropped.
func (r PollEventRecord) DisplayName() string {
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if r.Username != "" {
		name += " (@" + r.Username + ")"
	}
	return name
}

// PollEventLog is the versioned aggregate of vote events for one published poll.
type PollEventLog struct {
	PollID        string            `json:"Id"`
	PostingRuleID string            `json:"PostingRuleId"`
	ChatID        int64             `json:"ChatId"`
	TopicID       *int              `json:"TopicId,omitempty"`
	MessageID     int               `json:"MessageId"`
	LogChatID     int64             `json:"ActionLogChatId"`
	LogTopicID    *int              `json:"ActionLogTopicId,omitempty"`
	LogMessageID  int               `json:"ActionLogMessageId"`
	Text          string            `json:"Text"`
	Records       []PollEventRecord `json:"Records"`
	Timezone      string            `json:"Timezone"`
	ExpiresAt     *time.Time        `json:"ExpiresAt,omitempty"`
	Version       int64             `json:"Version"`
}

// NewPollEventLog creates the empty log for a freshly published poll of rule.
func NewPollEventLog(rule *PostingRule, pollID string, messageID, logMessageID int, text string, now time.Time) (*PollEventLog, error) {
	if rule == nil || pollID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, ok := rule.Poll(); !ok || rule.PollActionLog == nil {
		return nil, domain.ErrInvalidState
	}
	l := &PollEventLog{
		PollID:        pollID,
		PostingRuleID: rule.ID,
		ChatID:        rule.ChatID,
		TopicID:       rule.TopicID,
		MessageID:     messageID,
		LogChatID:     rule.PollActionLog.ChatID,
		LogTopicID:    rule.PollActionLog.TopicID,
		LogMessageID:  logMessageID,
		Text:          text,
		Records:       []PollEventRecord{},
		Timezone:      rule.Timezone,
	}
	if rule.TTLHours != nil {
		exp := now.Add(time.Duration(*rule.TTLHours) * time.Hour)
		l.ExpiresAt = &exp
	}
	return l, nil
}

// WithRecord returns a copy of the log with rec appended. The receiver is not modified.
func (l *PollEventLog) WithRecord(rec PollEventRecord) *PollEventLog {
	cp := *l
	cp.Records = make([]PollEventRecord, 0, len(l.Records)+1)
	cp.Records = append(cp.Records, l.Records...)
	cp.Records = append(cp.Records, rec)
	return &cp
}

// Location returns the log's display timezone, falling back to UTC.
func (l *PollEventLog) Location() *time.Location {
	if loc, err := time.LoadLocation(l.Timezone); err == nil && l.Timezone != "" {
		return loc
	}
	return time.UTC
}
