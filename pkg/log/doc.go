// Package log provides flowatch's structured logging facade.
//
// # Overview
//
// Logger is a small leveled interface taking typed Fields. It is backed by
// the standard library's slog through a bridge handler that routes records
// into a Formatter and one or more Outputs, so every component writes the
// same line shape regardless of whether it logs through the facade or through
// a *slog.Logger obtained from it.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("watcher"), log.Str("source", "orders"))
//	l.Info("watching", log.Uint64("from_seq", 42))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text/json
// format, console/file/null outputs, redacted keys, sampling).
//
// # Interop
//
// Libraries that expect a *log.Logger from the standard library (Pebble's
// event listener, for one) can be pointed at a facade logger with
// ToStdLogger or RedirectStdLog.
package log
