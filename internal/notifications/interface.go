package notifications

import "context"

// Alert levels understood by notifiers.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(ctx context.Context, level, message string) error
}

// Nop discards alerts.
type Nop struct{}

func (Nop) SendAlert(context.Context, string, string) error { return nil }
