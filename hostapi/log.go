package hostapi

import (
	"fmt"

	"github.com/stacknerd/msghub/logging"
)

// StrictLogger is ctx.api.log: a string-only facade over the ambient
// logging.Logger, so a faulty plugin can't smuggle a struct/error value
// into a log call and crash a formatter deep in the logging backend.
// Silly has no backing level in logging.Logger, so it maps to Debug.
type StrictLogger struct {
	Inner logging.Logger
}

// NewStrictLogger wraps inner. A nil inner is replaced with a no-op logger.
func NewStrictLogger(inner logging.Logger) StrictLogger {
	if inner == nil {
		inner = logging.Noop{}
	}
	return StrictLogger{Inner: inner}
}

// WithPrefix returns a StrictLogger that prepends prefix to every
// message, for binding a per-plugin identity onto ctx.api.log.
func (l StrictLogger) WithPrefix(prefix string) StrictLogger {
	return StrictLogger{Inner: logging.Prefixed{Inner: l.Inner, Prefix: prefix}}
}

func (l StrictLogger) Silly(msg string, args ...any) error { return l.emit(l.Inner.Debug, msg, args) }
func (l StrictLogger) Debug(msg string, args ...any) error { return l.emit(l.Inner.Debug, msg, args) }
func (l StrictLogger) Info(msg string, args ...any) error  { return l.emit(l.Inner.Info, msg, args) }
func (l StrictLogger) Warn(msg string, args ...any) error  { return l.emit(l.Inner.Warn, msg, args) }
func (l StrictLogger) Error(msg string, args ...any) error { return l.emit(l.Inner.Error, msg, args) }

func (l StrictLogger) emit(level func(string, ...any), msg string, args []any) error {
	for _, a := range args {
		if _, ok := a.(string); !ok {
			return fmt.Errorf("%w: %v", ErrNonStringLogArg, a)
		}
	}
	level(msg, args...)
	return nil
}
