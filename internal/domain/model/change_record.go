package model

import (
	"encoding/json"
	"strings"
	"time"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
	ChangeRemove ChangeKind = "REMOVE"
)

// ParseChangeKind keeps unknown names as-is so consumers can reject them.
func ParseChangeKind(s string) ChangeKind {
	return ChangeKind(strings.ToUpper(strings.TrimSpace(s)))
}

func (k ChangeKind) Known() bool {
	switch k {
	case ChangeInsert, ChangeModify, ChangeRemove:
		return true
	}
	return false
}

// ChangeRecord is one entry of a store's change feed.
// Before is set for MODIFY and REMOVE, After for INSERT and MODIFY.
type ChangeRecord struct {
	EventID   string          `json:"EventId"`
	Seq       int64           `json:"Seq"`
	Kind      ChangeKind      `json:"EventName"`
	Key       string          `json:"Key"`
	Before    json.RawMessage `json:"OldImage,omitempty"`
	After     json.RawMessage `json:"NewImage,omitempty"`
	CreatedAt time.Time       `json:"CreatedAt"`
}
