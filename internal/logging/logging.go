// Package logging provides the single structured-logger capability, held by
// metaserver.Server (the only engine in this module that logs), replacing the legacy gossip_debug /
// gossip_err signal-style calls with an explicit value held by the server
// context (see SPEC_FULL.md, "global mutable state").
package logging

import (
	"go.uber.org/zap"
)

// Logger is the capability engines depend on. It is intentionally a thin
// wrapper over *zap.SugaredLogger rather than a bespoke interface: callers
// that need the full zap API can call Raw().
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production-configured logger. Components should not reach
// for zap.L() or any other process-wide logger; this value is threaded
// through constructors instead.
func New() *Logger {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{s: z.Sugar()}
}

// Nop returns a logger that discards everything, for tests that do not
// want log noise.
func Nop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// Named returns a child logger scoped to the given component name, the
// way each engine (lockmgr, keyval, sidcache, ...) should identify itself.
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

func (l *Logger) Debugw(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// Raw exposes the underlying sugared logger for call sites that need it.
func (l *Logger) Raw() *zap.SugaredLogger { return l.s }

// Sync flushes any buffered log entries; call on shutdown.
func (l *Logger) Sync() error { return l.s.Sync() }
