// Package logging defines the structured logger the recovery engine emits
// events through, plus a zerolog-backed implementation for binaries.
package logging

import "github.com/rs/zerolog"

// Logger receives structured key-value events from the engine. The engine
// emits events; it never formats them.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Zerolog adapts a zerolog.Logger to the engine's Logger interface.
type Zerolog struct {
	L zerolog.Logger
}

// NewZerolog wraps a zerolog logger.
func NewZerolog(l zerolog.Logger) *Zerolog {
	return &Zerolog{L: l}
}

func (z *Zerolog) Debug(msg string, kv ...interface{}) { fields(z.L.Debug(), kv).Msg(msg) }
func (z *Zerolog) Info(msg string, kv ...interface{})  { fields(z.L.Info(), kv).Msg(msg) }
func (z *Zerolog) Error(msg string, kv ...interface{}) { fields(z.L.Error(), kv).Msg(msg) }

func fields(ev *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}
