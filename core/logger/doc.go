// Package logger provides a small set of slog.Attr helpers for this
// module's log calls. The core components (registry, pipeline, timekeeper,
// breathing, dispatch, orchestration) build their attributes with log/slog
// directly and do not import this package. Each helper is nil-safe: calling
// logger.Error(nil) or logger.ChannelID("") returns a zero-value slog.Attr
// that slog silently drops, so call sites never need a guard.
//
// Typical use inside a component:
//
//	log.ErrorContext(ctx, "dispatch failed",
//		logger.ChannelID(ch.ID),
//		logger.Priority(ch.Priority.String()),
//		logger.Error(err),
//		logger.Duration(time.Since(start)),
//	)
package logger
