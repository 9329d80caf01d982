// Copyright (C) 2020-2026 Sirius Social, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

// Package logging wraps logrus behind a small Logger interface so that
// packages carry structured, leveled loggers without binding to a concrete
// implementation.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level refers to the log logging level.
type Level uint32

// The levels, in decreasing order of severity.
const (
	Panic Level = iota
	Fatal
	Error
	Warn
	Info
	Debug
)

// Fields maps names to arbitrary values attached to an entry.
type Fields = logrus.Fields

// Logger is the logging interface the rest of the module programs against.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
	Panicf(string, ...interface{})

	With(key string, value interface{}) Logger
	WithFields(Fields) Logger

	SetLevel(Level)
	IsLevelEnabled(Level) bool
	SetOutput(io.Writer)
	SetJSONFormatter()
}

type logger struct {
	entry *logrus.Entry
}

func (l logger) Debug(args ...interface{})            { l.entry.Debug(args...) }
func (l logger) Debugf(f string, args ...interface{}) { l.entry.Debugf(f, args...) }
func (l logger) Info(args ...interface{})             { l.entry.Info(args...) }
func (l logger) Infof(f string, args ...interface{})  { l.entry.Infof(f, args...) }
func (l logger) Warn(args ...interface{})             { l.entry.Warn(args...) }
func (l logger) Warnf(f string, args ...interface{})  { l.entry.Warnf(f, args...) }
func (l logger) Error(args ...interface{})            { l.entry.Error(args...) }
func (l logger) Errorf(f string, args ...interface{}) { l.entry.Errorf(f, args...) }
func (l logger) Panicf(f string, args ...interface{}) { l.entry.Panicf(f, args...) }

func (l logger) With(key string, value interface{}) Logger {
	return logger{entry: l.entry.WithField(key, value)}
}

func (l logger) WithFields(fields Fields) Logger {
	return logger{entry: l.entry.WithFields(fields)}
}

func (l logger) SetLevel(lvl Level) {
	l.entry.Logger.SetLevel(logrus.Level(lvl))
}

func (l logger) IsLevelEnabled(lvl Level) bool {
	return l.entry.Logger.IsLevelEnabled(logrus.Level(lvl))
}

func (l logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l logger) SetJSONFormatter() {
	l.entry.Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000Z07:00"})
}

// NewLogger returns a fresh Logger writing to stderr at Info level.
func NewLogger() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return logger{entry: logrus.NewEntry(l)}
}

var baseOnce sync.Once
var baseLogger Logger

// Base returns the process-wide default logger.
func Base() Logger {
	baseOnce.Do(func() {
		baseLogger = NewLogger()
	})
	return baseLogger
}

// TestingLog is implemented by *testing.T and *testing.B.
type TestingLog interface {
	Logf(format string, args ...interface{})
}

type testWriter struct {
	tb TestingLog
}

func (w testWriter) Write(p []byte) (int, error) {
	w.tb.Logf("%s", p)
	return len(p), nil
}

// TestingLogger returns a debug-level logger that routes through the test's
// own log so output interleaves with test failures.
func TestingLogger(tb TestingLog) Logger {
	l := NewLogger()
	l.SetOutput(testWriter{tb: tb})
	l.SetLevel(Debug)
	return l
}
