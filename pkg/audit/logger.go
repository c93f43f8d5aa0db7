package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/provisioner/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event *Event) error
}

// NoOpLogger discards every event
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that records nothing
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Log implements Logger
func (l *NoOpLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

// LogrusLogger writes events as structured entries tagged audit=true
type LogrusLogger struct {
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewLogrusLogger creates an audit logger on top of a logrus logger. Pointing
// the logger at a dedicated output keeps the trail separate from
// operational logs.
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{logger: logger, now: time.Now}
}

// Log implements Logger
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = l.now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}

	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.Type),
		"status":     string(event.Status),
		"event_time": event.Time.Format(time.RFC3339Nano),
	}
	optional := map[string]string{
		"request_id": event.RequestID,
		"caller_id":  event.CallerID,
		"user_id":    event.UserID,
		"email":      event.Email,
		"role":       event.Role,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}

	entry := l.logger.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}
