// Package logger provides the structured logging interface used across
// yareviews.
//
// It wraps zerolog with a coloured console writer and, when a log file is
// configured, a size-rotated JSON file sink backed by lumberjack.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "session")
//	log.InfoWithFields("Session opened", map[string]interface{}{
//	    "session": id,
//	    "profile": dir,
//	})
//
// Tests use NewTestLogger to capture records, or NewNopLogger to silence them.
package logger
