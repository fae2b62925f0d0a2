package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/khrabrovart/telebot/internal/domain"
)

type ContentType string

const (
	ContentTypeText ContentType = "Text"
	ContentTypePoll ContentType = "Poll"
)

// Content is the variant part of a posting rule: TextContent or PollContent.
type Content interface {
	Type() ContentType
	issues() []string
}

type TextContent struct {
	Text string `json:"Text"`
}

func (TextContent) Type() ContentType { return ContentTypeText }

func (c TextContent) issues() []string {
	if strings.TrimSpace(c.Text) == "" {
		return []string{"Text is empty"}
	}
	return nil
}

type PollContent struct {
	Question string   `json:"Question"`
	Options  []string `json:"Options"`
}

func (PollContent) Type() ContentType { return ContentTypePoll }

func (c PollContent) issues() []string {
	var out []string
	if strings.TrimSpace(c.Question) == "" {
		out = append(out, "Question is empty")
	}
	if len(c.Options) == 0 {
		out = append(out, "Options are empty")
	}
	for i, o := range c.Options {
		if strings.TrimSpace(o) == "" {
			out = append(out, fmt.Sprintf("Option %d is empty", i+1))
		}
	}
	return out
}

// OptionText resolves a zero-based option id.
func (c PollContent) OptionText(id int) (string, bool) {
	if id < 0 || id >= len(c.Options) {
		return "", false
	}
	return c.Options[id], true
}

type OutputMode string

const (
	OutputAll                         OutputMode = "All"
	OutputOnlyWhenTargetOptionRevoked OutputMode = "OnlyWhenTargetOptionRevoked"
)

// OutputPolicy controls which vote records are rendered in the poll log view.
// TargetOptionID is only meaningful for OutputOnlyWhenTargetOptionRevoked.
type OutputPolicy struct {
	Type           OutputMode `json:"Type"`
	TargetOptionID int        `json:"TargetOptionId"`
}

func AllOutput() OutputPolicy { return OutputPolicy{Type: OutputAll} }

func OnlyWhenTargetOptionRevoked(targetOptionID int) OutputPolicy {
	return OutputPolicy{Type: OutputOnlyWhenTargetOptionRevoked, TargetOptionID: targetOptionID}
}

// PollActionLogConfig says where the vote log of a poll rule is displayed.
type PollActionLogConfig struct {
	ChatID  int64        `json:"ChatId"`
	TopicID *int         `json:"TopicId,omitempty"`
	Output  OutputPolicy `json:"Output"`
}

// PostingRule is a user-defined scheduled message.
type PostingRule struct {
	ID            string
	BotID         string
	ChatID        int64
	TopicID       *int
	Name          string
	Description   *string
	Schedule      string
	Timezone      string
	ShouldPin     bool
	IsActive      bool
	TTLHours      *int64
	Content       Content
	PollActionLog *PollActionLogConfig
}

// Poll returns the poll content when the rule publishes a poll.
func (r *PostingRule) Poll() (PollContent, bool) {
	switch c := r.Content.(type) {
	case PollContent:
		return c, true
	case *PollContent:
		if c != nil {
			return *c, true
		}
	}
	return PollContent{}, false
}

// CronExpression is the scheduler expression for the rule's schedule string.
func (r *PostingRule) CronExpression() string {
	return fmt.Sprintf("cron(%s)", strings.TrimSpace(r.Schedule))
}

// Validate returns every invariant the rule fails; nil means the rule is valid.
func (r *PostingRule) Validate() []string {
	var issues []string
	if strings.TrimSpace(r.ID) == "" {
		issues = append(issues, "Id is empty")
	}
	if strings.TrimSpace(r.BotID) == "" {
		issues = append(issues, "BotId is empty")
	}
	if r.ChatID == 0 {
		issues = append(issues, "ChatId is empty")
	}
	if r.TopicID != nil && *r.TopicID <= 0 {
		issues = append(issues, "TopicId is invalid")
	}
	if strings.TrimSpace(r.Name) == "" {
		issues = append(issues, "Name is empty")
	}
	if r.Description != nil && strings.TrimSpace(*r.Description) == "" {
		issues = append(issues, "Description is empty")
	}
	issues = append(issues, scheduleIssues(r.Schedule)...)
	if strings.TrimSpace(r.Timezone) == "" {
		issues = append(issues, "Timezone is empty")
	} else if _, err := time.LoadLocation(r.Timezone); err != nil {
		issues = append(issues, "Timezone is unknown")
	}
	if r.TTLHours != nil && *r.TTLHours <= 0 {
		issues = append(issues, "TtlHours is invalid")
	}

	switch c := r.Content.(type) {
	case nil:
		issues = append(issues, "Content is empty")
	default:
		issues = append(issues, c.issues()...)
	}

	if r.PollActionLog != nil {
		poll, isPoll := r.Poll()
		if !isPoll {
			issues = append(issues, "PollActionLog is set on a non-poll rule")
		}
		if r.PollActionLog.ChatID == 0 {
			issues = append(issues, "PollActionLog.ChatId is empty")
		}
		switch r.PollActionLog.Output.Type {
		case OutputAll:
		case OutputOnlyWhenTargetOptionRevoked:
			if _, ok := poll.OptionText(r.PollActionLog.Output.TargetOptionID); isPoll && !ok {
				issues = append(issues, "PollActionLog.Output.TargetOptionId is out of range")
			}
		default:
			issues = append(issues, "PollActionLog.Output.Type is unknown")
		}
	}
	return issues
}

// IsValid reports whether the rule satisfies every invariant. Validity is independent of IsActive.
func (r *PostingRule) IsValid() bool { return len(r.Validate()) == 0 }

// Err returns a *domain.ValidationError when the rule is invalid.
func (r *PostingRule) Err() error {
	if issues := r.Validate(); len(issues) > 0 {
		return &domain.ValidationError{Entity: "posting rule " + r.ID, Issues: issues}
	}
	return nil
}

// WantsSchedule reports whether a schedule resource must exist for the rule.
func (r *PostingRule) WantsSchedule() bool { return r.IsActive && r.IsValid() }

func scheduleIssues(schedule string) []string {
	if strings.TrimSpace(schedule) == "" {
		return []string{"Schedule is empty"}
	}
	if n := len(strings.Fields(schedule)); n < 5 || n > 6 {
		return []string{"Schedule must have 5 or 6 parts"}
	}
	return nil
}

// ---- JSON codec ----

type postingRuleJSON struct {
	Type          ContentType          `json:"Type"`
	ID            string               `json:"Id"`
	BotID         string               `json:"BotId"`
	ChatID        int64                `json:"ChatId"`
	TopicID       *int                 `json:"TopicId,omitempty"`
	Name          string               `json:"Name"`
	Description   *string              `json:"Description,omitempty"`
	Schedule      string               `json:"Schedule"`
	Timezone      string               `json:"Timezone"`
	ShouldPin     bool                 `json:"ShouldPin"`
	IsActive      bool                 `json:"IsActive"`
	TTLHours      *int64               `json:"TtlHours,omitempty"`
	Content       json.RawMessage      `json:"Content,omitempty"`
	PollActionLog *PollActionLogConfig `json:"PollActionLog,omitempty"`
}

func (r PostingRule) MarshalJSON() ([]byte, error) {
	w := postingRuleJSON{
		ID:            r.ID,
		BotID:         r.BotID,
		ChatID:        r.ChatID,
		TopicID:       r.TopicID,
		Name:          r.Name,
		Description:   r.Description,
		Schedule:      r.Schedule,
		Timezone:      r.Timezone,
		ShouldPin:     r.ShouldPin,
		IsActive:      r.IsActive,
		TTLHours:      r.TTLHours,
		PollActionLog: r.PollActionLog,
	}
	if r.Content != nil {
		w.Type = r.Content.Type()
		raw, err := json.Marshal(r.Content)
		if err != nil {
			return nil, err
		}
		w.Content = raw
	}
	return json.Marshal(w)
}

func (r *PostingRule) UnmarshalJSON(data []byte) error {
	var w postingRuleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = PostingRule{
		ID:            w.ID,
		BotID:         w.BotID,
		ChatID:        w.ChatID,
		TopicID:       w.TopicID,
		Name:          w.Name,
		Description:   w.Description,
		Schedule:      w.Schedule,
		Timezone:      w.Timezone,
		ShouldPin:     w.ShouldPin,
		IsActive:      w.IsActive,
		TTLHours:      w.TTLHours,
		PollActionLog: w.PollActionLog,
	}

	hasContent := len(w.Content) > 0 && string(w.Content) != "null"
	switch w.Type {
	case ContentTypeText:
		var c TextContent
		if hasContent {
			if err := json.Unmarshal(w.Content, &c); err != nil {
				return fmt.Errorf("text content: %w", err)
			}
		}
		r.Content = c
	case ContentTypePoll:
		var c PollContent
		if hasContent {
			if err := json.Unmarshal(w.Content, &c); err != nil {
				return fmt.Errorf("poll content: %w", err)
			}
		}
		r.Content = c
	default:
		return fmt.Errorf("%w: unknown posting rule type %q", domain.ErrInvalidArgument, w.Type)
	}
	return nil
}

// DecodePostingRule decodes a stored or change-feed image.
func DecodePostingRule(image []byte) (*PostingRule, error) {
	var r PostingRule
	if err := json.Unmarshal(image, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
