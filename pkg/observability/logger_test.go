package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/provisioner/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged as json", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
	})

	t.Run("fields are preserved", func(t *testing.T) {
		buf.Reset()
		logger.WithField("key", "value").Warn("warn message")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "value", entry["key"])
		assert.Equal(t, "warning", entry["level"])
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"INFO", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"nonsense", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Run("falls back to standard logger", func(t *testing.T) {
		entry := FromContext(context.Background())
		require.NotNil(t, entry)
		assert.Equal(t, logrus.StandardLogger(), entry.Logger)
	})

	t.Run("uses attached logger and request ids", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(logrus.InfoLevel, &buf)

		ctx := contextkeys.WithRequestID(context.Background(), "req-1")
		ctx = contextkeys.WithCallerID(ctx, "caller-1")
		ctx = WithLogger(ctx, logrus.NewEntry(logger))

		FromContext(ctx).Info("hello")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "caller-1", entry["caller_id"])
	})
}
