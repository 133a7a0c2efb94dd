package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// keepRunning replaces zap's exit-on-fatal so a discarded Fatal entry does
// not stop a test binary
type keepRunning struct{}

func (keepRunning) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

// NewNoOpLogger returns a logger that discards every entry, Fatal included.
// Library code takes it as the default when no logger is injected.
func NewNoOpLogger() Logger {
	return NewFromZap(zap.New(zapcore.NewNopCore(), zap.WithFatalHook(keepRunning{})))
}
