package condcache

import (
	"log/slog"
	"sync/atomic"
)

var pkgLogger atomic.Pointer[slog.Logger]

// SetLogger configures the logger used by this package and its cache
// backends. Passing nil restores the default slog logger.
func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

// GetLogger returns the configured logger, falling back to slog.Default().
func GetLogger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
