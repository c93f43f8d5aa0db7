package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// LogPanic logs a recovered panic value with its stack trace. It must be
// given the value returned by recover(); a nil value is ignored.
//
// Usage:
//
//	defer func() {
//	    if r := recover(); r != nil {
//	        observability.LogPanic(logger, "admin handler", r)
//	    }
//	}()
func LogPanic(logger logrus.FieldLogger, where string, r interface{}) {
	if r == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
