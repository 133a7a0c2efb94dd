// Package notify delivers team notifications raised by workflows that found
// critical anti-patterns. Sinks are a structured log, a Redis pub/sub
// channel and a WebSocket hub; Multi fans out to several of them.
package notify

import (
	"context"
	"errors"
	"time"

	"bugx/internal/logging"
)

// AntiPatternSummary is the part of a detected anti-pattern a notification
// carries
type AntiPatternSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Occurrences int    `json:"occurrences"`
	Solution    string `json:"solution"`
}

// Notification is one team alert
type Notification struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	SessionID    string               `json:"session_id"`
	Developer    string               `json:"developer"`
	Component    string               `json:"component,omitempty"`
	FileName     string               `json:"file_name,omitempty"`
	ErrorMessage string               `json:"error_message"`
	ErrorType    string               `json:"error_type,omitempty"`
	AntiPatterns []AntiPatternSummary `json:"anti_patterns"`
	Message      string               `json:"message"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Notification types
const (
	TypeCriticalAntiPattern = "critical_anti_pattern"
	TypeConnection          = "connection"
	TypeHeartbeat           = "heartbeat"
	TypePong                = "pong"
)

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to a logger
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier creates a notifier that logs at warn level
func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	ids := make([]string, 0, len(n.AntiPatterns))
	for _, ap := range n.AntiPatterns {
		ids = append(ids, ap.ID)
	}
	l.logger.WarnContext(ctx, "Team notification",
		"notification_id", n.ID,
		"session_id", n.SessionID,
		"developer", n.Developer,
		"component", n.Component,
		"anti_patterns", ids,
		"message", n.Message)
	return nil
}

// Multi delivers to every notifier and joins their errors. One failing sink
// does not stop the others.
type Multi []Notifier

// Notify fans n out to all notifiers
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
