// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log implements the logging package used by all logpipe components,
// wrapping seelog behind a stable API so that the underlying logger can be
// reconfigured at runtime.
package log

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

var (
	logger *pipeLogger

	// This buffer holds log lines emitted before the logger is initialized,
	// typically while the configuration is still being loaded. It is flushed
	// by SetupLogger and should be very short lived.
	logsBuffer           = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex          sync.Mutex
)

const logFormat = "%Date(2006-01-02 15:04:05 MST) | %LEVEL | (%ShortFilePath:%Line) | %Msg%n"

// pipeLogger is a wrapper around seelog holding the current level.
type pipeLogger struct {
	inner seelog.LoggerInterface
	level seelog.LogLevel
	mu    sync.RWMutex
}

// SetupLogger configures the logger singleton with a seelog interface and a
// minimum level.
func SetupLogger(l seelog.LoggerInterface, level string) {
	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		lvl = seelog.InfoLvl
	}
	logger = &pipeLogger{
		inner: l,
		level: lvl,
	}
	logger.inner.SetAdditionalStackDepth(2) //nolint:errcheck

	bufferMutex.Lock()
	defer bufferMutex.Unlock()
	bufferLogsBeforeInit = false
	for _, logLine := range logsBuffer {
		logLine()
	}
	logsBuffer = []func(){}
}

// SetupDefaultLogger points the logger at stderr with the given level. It is
// used by tests and by commands that have no logging configuration.
func SetupDefaultLogger(level string) {
	l, err := seelog.LoggerFromWriterWithMinLevelAndFormat(os.Stderr, seelog.TraceLvl, logFormat)
	if err != nil {
		l = seelog.Default
	}
	SetupLogger(l, level)
}

// ChangeLogLevel changes the minimum level at runtime.
func ChangeLogLevel(level string) error {
	if logger == nil {
		return errors.New("logger not initialized")
	}
	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		return errors.New("bad log level")
	}
	logger.mu.Lock()
	logger.level = lvl
	logger.mu.Unlock()
	return nil
}

// Flush flushes the underlying logger.
func Flush() {
	if logger != nil {
		logger.inner.Flush()
	}
}

func addLogToBuffer(logHandle func()) {
	bufferMutex.Lock()
	defer bufferMutex.Unlock()
	logsBuffer = append(logsBuffer, logHandle)
}

func (l *pipeLogger) shouldLog(level seelog.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func emit(level seelog.LogLevel, v ...interface{}) {
	if logger == nil {
		if bufferLogsBeforeInit {
			addLogToBuffer(func() { emit(level, v...) })
		}
		return
	}
	if !logger.shouldLog(level) {
		return
	}
	s := fmt.Sprint(v...)
	switch level {
	case seelog.TraceLvl:
		logger.inner.Trace(s)
	case seelog.DebugLvl:
		logger.inner.Debug(s)
	case seelog.InfoLvl:
		logger.inner.Info(s)
	case seelog.WarnLvl:
		logger.inner.Warn(s) //nolint:errcheck
	case seelog.ErrorLvl:
		logger.inner.Error(s) //nolint:errcheck
	case seelog.CriticalLvl:
		logger.inner.Critical(s) //nolint:errcheck
	}
}

func emitf(level seelog.LogLevel, format string, params ...interface{}) {
	emit(level, fmt.Sprintf(format, params...))
}

// Trace logs at the trace level.
func Trace(v ...interface{}) { emit(seelog.TraceLvl, v...) }

// Tracef logs with format at the trace level.
func Tracef(format string, params ...interface{}) { emitf(seelog.TraceLvl, format, params...) }

// Debug logs at the debug level.
func Debug(v ...interface{}) { emit(seelog.DebugLvl, v...) }

// Debugf logs with format at the debug level.
func Debugf(format string, params ...interface{}) { emitf(seelog.DebugLvl, format, params...) }

// Info logs at the info level.
func Info(v ...interface{}) { emit(seelog.InfoLvl, v...) }

// Infof logs with format at the info level.
func Infof(format string, params ...interface{}) { emitf(seelog.InfoLvl, format, params...) }

// Warn logs at the warn level.
func Warn(v ...interface{}) { emit(seelog.WarnLvl, v...) }

// Warnf logs with format at the warn level.
func Warnf(format string, params ...interface{}) { emitf(seelog.WarnLvl, format, params...) }

// Error logs at the error level.
func Error(v ...interface{}) { emit(seelog.ErrorLvl, v...) }

// Errorf logs with format at the error level.
func Errorf(format string, params ...interface{}) { emitf(seelog.ErrorLvl, format, params...) }

// Critical logs at the critical level.
func Critical(v ...interface{}) { emit(seelog.CriticalLvl, v...) }

// Criticalf logs with format at the critical level.
func Criticalf(format string, params ...interface{}) { emitf(seelog.CriticalLvl, format, params...) }
