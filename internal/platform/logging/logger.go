// Package logging provides runtime.Logger implementations for processes that run outside
// of a Nakama server, so the same printf-style logging flows through every package.
package logging

import (
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/pterm/pterm"
)

// ptermLogger adapts pterm's structured logger to runtime.Logger.
type ptermLogger struct {
	base   *pterm.Logger
	fields map[string]interface{}
}

// NewPterm returns a runtime.Logger writing through pterm at the given level
// ("debug", "info", "warn", "error"). A nil writer keeps pterm's default output.
func NewPterm(level string, w io.Writer) runtime.Logger {
	base := pterm.DefaultLogger.WithLevel(ParseLevel(level))
	if w != nil {
		base = base.WithWriter(w)
	}
	return &ptermLogger{base: base}
}

// ParseLevel maps a level name to pterm's levels, defaulting to info.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(level) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}

func (l *ptermLogger) args() [][]pterm.LoggerArgument {
	if len(l.fields) == 0 {
		return nil
	}
	return [][]pterm.LoggerArgument{l.base.ArgsFromMap(l.fields)}
}

func (l *ptermLogger) Debug(format string, v ...interface{}) {
	l.base.Debug(fmt.Sprintf(format, v...), l.args()...)
}

func (l *ptermLogger) Info(format string, v ...interface{}) {
	l.base.Info(fmt.Sprintf(format, v...), l.args()...)
}

func (l *ptermLogger) Warn(format string, v ...interface{}) {
	l.base.Warn(fmt.Sprintf(format, v...), l.args()...)
}

func (l *ptermLogger) Error(format string, v ...interface{}) {
	l.base.Error(fmt.Sprintf(format, v...), l.args()...)
}

func (l *ptermLogger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *ptermLogger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)
	return &ptermLogger{base: l.base, fields: merged}
}

func (l *ptermLogger) Fields() map[string]interface{} {
	return maps.Clone(l.fields)
}

// noopLogger discards everything.
type noopLogger struct{}

// Noop returns a runtime.Logger that discards all output.
func Noop() runtime.Logger { return noopLogger{} }

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}
