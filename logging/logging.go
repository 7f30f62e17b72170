// Package logging provides the ambient structured-logging seam used
// throughout msghub, mirroring the teacher's narrow Logger interface
// (modular.Logger) so any slog/zap/logrus-backed implementation can be
// plugged in without the core depending on a concrete library.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the structured logger every component takes as a
// collaborator. Key-value pairs follow the "msg, k1, v1, k2, v2, ..."
// convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Noop discards everything; used as a safe default collaborator.
type Noop struct{}

func (Noop) Debug(string, ...any) {}
func (Noop) Info(string, ...any)  {}
func (Noop) Warn(string, ...any)  {}
func (Noop) Error(string, ...any) {}

// Zap adapts a *zap.SugaredLogger to the Logger interface, the
// production logging backend (mirrors examples/advanced-logging's zap
// wiring in the teacher repo).
type Zap struct {
	S *zap.SugaredLogger
}

// NewZap builds a production Zap-backed Logger.
func NewZap() (*Zap, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Zap{S: z.Sugar()}, nil
}

func (l *Zap) Debug(msg string, args ...any) { l.S.Debugw(msg, args...) }
func (l *Zap) Info(msg string, args ...any)  { l.S.Infow(msg, args...) }
func (l *Zap) Warn(msg string, args ...any)  { l.S.Warnw(msg, args...) }
func (l *Zap) Error(msg string, args ...any) { l.S.Errorw(msg, args...) }

// Sync flushes any buffered log entries.
func (l *Zap) Sync() error { return l.S.Sync() }

// Prefixed wraps a Logger, prepending a fixed prefix to every message.
// Used by hostapi to bind a per-plugin prefix to ctx.api.log.
type Prefixed struct {
	Inner  Logger
	Prefix string
}

func (p Prefixed) Debug(msg string, args ...any) { p.Inner.Debug(p.Prefix+msg, args...) }
func (p Prefixed) Info(msg string, args ...any)  { p.Inner.Info(p.Prefix+msg, args...) }
func (p Prefixed) Warn(msg string, args ...any)  { p.Inner.Warn(p.Prefix+msg, args...) }
func (p Prefixed) Error(msg string, args ...any) { p.Inner.Error(p.Prefix+msg, args...) }
