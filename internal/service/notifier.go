package service

// Notifier delivers a text message to a Telegram chat. Implementations
// return send failures for the caller to log; delivery is best effort.
type Notifier interface {
	Send(chatID int64, text string) error
}
