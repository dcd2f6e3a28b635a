/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package notify is the user-facing status message sink. The core fires
// messages at it and never depends on delivery; the UI layer plugs in a
// toast implementation, headless builds fall back to the logger.
package notify

import (
	applog "postcanvas/internal/log"
)

// Level classifies a message for presentation only.
type Level int

const (
	Info Level = iota
	Warning
	Error
)

// Sink receives fire-and-forget status messages.
type Sink interface {
	Notify(level Level, message string)
}

// LogSink routes messages to the application logger.
type LogSink struct{}

func (LogSink) Notify(level Level, message string) {
	l := applog.WithComponent("notify")
	switch level {
	case Error:
		l.Error(message)
	case Warning:
		l.Warn(message)
	default:
		l.Info(message)
	}
}

// Func adapts a plain function to a Sink.
type Func func(level Level, message string)

func (f Func) Notify(level Level, message string) { f(level, message) }

var _ Sink = LogSink{}
var _ Sink = Func(nil)

// Discard drops everything.
var Discard Sink = Func(func(Level, string) {})

func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}
