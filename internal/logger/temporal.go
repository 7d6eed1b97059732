package logger

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// TemporalLogger adapts a zerolog.Logger to the Temporal SDK logger.
type TemporalLogger struct {
	zl zerolog.Logger
}

var (
	_ log.Logger     = (*TemporalLogger)(nil)
	_ log.WithLogger = (*TemporalLogger)(nil)
)

func NewTemporalLogger(zl zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{zl: zl}
}

func (t *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	withFields(t.zl.Debug(), keyvals).Msg(msg)
}

func (t *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	withFields(t.zl.Info(), keyvals).Msg(msg)
}

func (t *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	withFields(t.zl.Warn(), keyvals).Msg(msg)
}

func (t *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	withFields(t.zl.Error(), keyvals).Msg(msg)
}

// With returns a logger that adds keyvals to every message.
func (t *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	ctx := t.zl.With()
	for i := 0; i < len(keyvals); i += 2 {
		ctx = ctx.Interface(keyName(keyvals[i]), value(keyvals, i+1))
	}
	return &TemporalLogger{zl: ctx.Logger()}
}

func withFields(e *zerolog.Event, keyvals []interface{}) *zerolog.Event {
	for i := 0; i < len(keyvals); i += 2 {
		k := keyName(keyvals[i])
		switch v := value(keyvals, i+1).(type) {
		case error:
			e = e.AnErr(k, v)
		case string:
			e = e.Str(k, v)
		default:
			e = e.Interface(k, v)
		}
	}
	return e
}

func keyName(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// value returns keyvals[i], or a marker when a key has no value.
func value(keyvals []interface{}, i int) interface{} {
	if i < len(keyvals) {
		return keyvals[i]
	}
	return "MISSING"
}
