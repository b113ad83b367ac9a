package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogExtraction logs the outcome of one extraction call
func LogExtraction(l Logger, orgID int64, mode string, reviews int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"org_id":      orgID,
		"mode":        mode,
		"reviews":     reviews,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		l.WithError(err).WarnWithFields("Extraction failed", fields)
		return
	}
	l.InfoWithFields("Extraction completed", fields)
}

// LogRotation logs a session being replaced
func LogRotation(l Logger, oldID, newID, reason string) {
	l.WithFields(map[string]interface{}{
		"old_session": oldID,
		"new_session": newID,
		"reason":      reason,
	}).Info("Session rotated")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
