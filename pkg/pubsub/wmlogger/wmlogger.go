/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wmlogger

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/weft-social/weft/internal/pkg/log"
)

// Module is the name of the Watermill module used for logging.
const Module = "watermill"

// Logger wraps the structured logger and implements the Watermill logger adapter interface.
type Logger struct {
	logger *log.Log
	fields watermill.LogFields
}

// New returns a new Watermill logger adapter.
func New() *Logger {
	return &Logger{logger: log.New(Module)}
}

// Error logs an error.
func (l *Logger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(fmt.Sprintf("%s%s", msg, l.asString(fields)), log.WithError(err))
}

// Info logs an informational message. Watermill outputs too many INFO logs,
// so these are logged at DEBUG level.
func (l *Logger) Info(msg string, fields watermill.LogFields) {
	l.logger.Debug(fmt.Sprintf("%s%s", msg, l.asString(fields)))
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(fmt.Sprintf("%s%s", msg, l.asString(fields)))
}

// Trace logs a trace message. Note that this implementation uses a debug log for trace.
func (l *Logger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(fmt.Sprintf("%s%s", msg, l.asString(fields)))
}

// With returns a new logger with the supplied fields so that each log contains these fields.
func (l *Logger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &Logger{
		logger: l.logger,
		fields: l.fields.Add(fields),
	}
}

func (l *Logger) asString(additionalFields watermill.LogFields) string {
	if len(l.fields) == 0 && len(additionalFields) == 0 {
		return ""
	}

	var msg string

	for k, v := range l.fields.Add(additionalFields) {
		if msg != "" {
			msg += ", "
		}

		var vStr string
		if stringer, ok := v.(fmt.Stringer); ok {
			vStr = stringer.String()
		} else {
			vStr = fmt.Sprintf("%v", v)
		}

		msg += fmt.Sprintf("%s=%s", k, vStr)
	}

	return " - Fields: " + msg
}
