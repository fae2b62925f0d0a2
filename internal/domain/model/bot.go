package model

import (
	"encoding/json"
	"strings"

	"github.com/khrabrovart/telebot/internal/domain"
)

// Bot is a registered Telegram bot. Its ID keys the webhook route.
type Bot struct {
	ID     string   `json:"Id"`
	Token  string   `json:"Token"`
	Admins []string `json:"Admins"`
}

func (b *Bot) Err() error {
	var issues []string
	if strings.TrimSpace(b.ID) == "" {
		issues = append(issues, "Id is empty")
	}
	if strings.TrimSpace(b.Token) == "" {
		issues = append(issues, "Token is empty")
	}
	if len(issues) > 0 {
		return &domain.ValidationError{Entity: "bot " + b.ID, Issues: issues}
	}
	return nil
}

func DecodeBot(image []byte) (*Bot, error) {
	var b Bot
	if err := json.Unmarshal(image, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
