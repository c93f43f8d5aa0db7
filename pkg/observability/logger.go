package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/provisioner/pkg/contextkeys"
)

// NewLogger creates a JSON logrus logger writing to output at the given level
func NewLogger(level logrus.Level, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return logger
}

// ParseLevel parses a log level string, falling back to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return logrus.WarnLevel
	case "":
		return logrus.InfoLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// WithLogger adds a request-scoped logger to the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return contextkeys.WithLogger(ctx, entry)
}

// FromContext returns the request-scoped logger, or an entry of the standard
// logger when none was attached. The entry always carries the request id and
// caller id if they are known.
func FromContext(ctx context.Context) *logrus.Entry {
	entry, ok := ctx.Value(contextkeys.LoggerKey).(*logrus.Entry)
	if !ok || entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}

	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		if _, set := entry.Data["request_id"]; !set {
			entry = entry.WithField("request_id", requestID)
		}
	}
	if callerID := contextkeys.GetCallerID(ctx); callerID != "" {
		entry = entry.WithField("caller_id", callerID)
	}
	return entry
}
