package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	return NewLogger(logrus.InfoLevel, &bytes.Buffer{})
}

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"with custom timeout", 10 * time.Second, 10 * time.Second},
		{"with zero timeout uses default", 0, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewShutdownManager(quietLogger(), tt.timeout, &http.Server{})
			require.NotNil(t, sm)
			assert.Equal(t, tt.expectedTimeout, sm.shutdownTimeout)
			assert.Len(t, sm.servers, 1)
		})
	}

	t.Run("nil logger falls back to standard logger", func(t *testing.T) {
		sm := NewShutdownManager(nil, time.Second)
		assert.NotNil(t, sm.logger)
	})
}

func TestShutdownManager_RegisterShutdownFunc(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)

	sm.RegisterShutdownFunc(func(context.Context) error { return nil })
	sm.RegisterShutdownFunc(nil)

	assert.Len(t, sm.shutdownFuncs, 1)
}

func TestShutdownManager_Shutdown(t *testing.T) {
	t.Run("runs all functions", func(t *testing.T) {
		sm := NewShutdownManager(quietLogger(), time.Second, &http.Server{})

		var calls int32
		for i := 0; i < 3; i++ {
			sm.RegisterShutdownFunc(func(context.Context) error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}

		require.NoError(t, sm.Shutdown())
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("reports function errors", func(t *testing.T) {
		sm := NewShutdownManager(quietLogger(), time.Second)
		sm.RegisterShutdownFunc(func(context.Context) error { return errors.New("close failed") })

		err := sm.Shutdown()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close failed")
	})

	t.Run("times out slow functions", func(t *testing.T) {
		sm := NewShutdownManager(quietLogger(), 50*time.Millisecond)
		release := make(chan struct{})
		defer close(release)
		sm.RegisterShutdownFunc(func(context.Context) error {
			<-release
			return nil
		})

		err := sm.Shutdown()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})
}

func TestShutdownManager_WaitForShutdown(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), time.Second)

	var called int32
	sm.RegisterShutdownFunc(func(context.Context) error {
		atomic.StoreInt32(&called, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForShutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&called))
}
