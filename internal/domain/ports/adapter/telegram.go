package adapter

import "context"

// LogDisplay pushes a rendered poll log to the chat message that shows it.
// An unchanged text is not an error.
type LogDisplay interface {
	EditLog(ctx context.Context, botID string, chatID int64, messageID int, text string) error
}
