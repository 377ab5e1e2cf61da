// Package wmlog bridges watermill's logger interface onto zerolog so the
// transport layer logs with the same structured fields as the rest of the
// module.
package wmlog

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

type adapter struct {
	logger zerolog.Logger
}

// New wraps a zerolog logger as a watermill.LoggerAdapter.
func New(logger zerolog.Logger) watermill.LoggerAdapter {
	return &adapter{logger: logger}
}

func (a *adapter) with(fields watermill.LogFields) zerolog.Logger {
	ctx := a.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}

func (a *adapter) Error(msg string, err error, fields watermill.LogFields) {
	l := a.with(fields)
	l.Error().Err(err).Msg(msg)
}

func (a *adapter) Info(msg string, fields watermill.LogFields) {
	l := a.with(fields)
	l.Info().Msg(msg)
}

func (a *adapter) Debug(msg string, fields watermill.LogFields) {
	l := a.with(fields)
	l.Debug().Msg(msg)
}

func (a *adapter) Trace(msg string, fields watermill.LogFields) {
	l := a.with(fields)
	l.Trace().Msg(msg)
}

func (a *adapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &adapter{logger: a.with(fields)}
}
