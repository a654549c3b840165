/*
 * Copyright (c) 2021 VMware, Inc.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of this software and
 * associated documentation files (the "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is furnished to do
 * so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all copies or substantial
 * portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT
 * NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
 * WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */

// Package logger decouples the library from any one logging framework. Adapters for
// logrus, zap and zerolog are provided; applications can plug in their own by
// implementing the Logger interface.
package logger

import (
	"github.com/sirupsen/logrus"
)

// Log level names accepted in Configuration.
const (
	Debug = "debug"
	Info  = "info"
	Warn  = "warn"
	Error = "error"
	Fatal = "fatal"
)

// Fields is the set of structured key/value pairs attached by WithFields.
type Fields map[string]interface{}

// Logger is the minimal leveled, formatted logging surface used throughout the library.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Panicf(format string, args ...interface{})
	WithFields(keyValues Fields) Logger
}

// Configuration stores the options for the provided logger backends. Console and file
// sinks can be enabled independently; file output is rotated via lumberjack.
type Configuration struct {
	EnableConsole     bool
	ConsoleJSONFormat bool
	ConsoleLevel      string
	EnableFile        bool
	FileJSONFormat    bool
	FileLevel         string
	Filename          string
	MaxSizeMB         int
	MaxAgeDays        int
	MaxBackups        int
	LocalTime         bool
}

// GetDefaultLogger returns a Logger backed by the standard logrus logger at info level.
func GetDefaultLogger() Logger {
	return NewLogrusLogger(logrus.StandardLogger())
}

// normalizeConfig fills in rotation defaults for file-backed sinks.
func normalizeConfig(config *Configuration) {
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 100
	}
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = 28
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 3
	}
}
