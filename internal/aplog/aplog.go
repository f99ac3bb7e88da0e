/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package aplog provides the supervisor's logging setup: a development-mode
// zap logger with a runtime-adjustable level and call-site annotation, plus
// a throttled variant for the high-frequency reconnection/scan-timeout
// warning paths.
package aplog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	atomicLevel = zap.NewAtomicLevel()
	daemonName  string
	tloggers    = make(map[string]*ThrottledLogger)
)

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006/01/02 15:04:05.000"))
}

func callerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	dir, fileName := filepath.Split(caller.File)
	dir = filepath.Base(dir)
	if dir != daemonName {
		fileName = filepath.Join(dir, fileName)
	}
	enc.AppendString(fmt.Sprintf("%s:%s:%d", daemonName, fileName, caller.Line))
}

// New returns a sugared zap logger for the named daemon. Each line carries
// a timestamp, level, and the daemon/file/line that produced it.
func New(name string) (*zap.SugaredLogger, error) {
	daemonName = name

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atomicLevel
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = timeEncoder
	cfg.EncoderConfig.EncodeCaller = callerEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	_ = zap.RedirectStdLog(logger)
	return logger.Sugar(), nil
}

// SetLevel adjusts the process-wide log level at runtime.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := (&l).UnmarshalText([]byte(level)); err != nil {
		return err
	}
	atomicLevel.SetLevel(l)
	return nil
}

// ThrottledLogger rate-limits repeated warnings so a reconnection loop
// can't flood the log.
type ThrottledLogger struct {
	slog      *zap.SugaredLogger
	next      time.Time
	baseDelay time.Duration
	maxDelay  time.Duration
	curDelay  time.Duration
}

// Clear resets the throttle back to its base delay.
func (t *ThrottledLogger) Clear() {
	t.next = time.Now()
	t.curDelay = t.baseDelay
}

func (t *ThrottledLogger) ready() bool {
	now := time.Now()
	if !now.After(t.next) {
		return false
	}
	t.next = now.Add(t.curDelay)
	t.curDelay *= 2
	if t.curDelay > t.maxDelay {
		t.curDelay = t.maxDelay
	}
	return true
}

// Warnf issues a WARN message, subject to the current throttle delay.
func (t *ThrottledLogger) Warnf(format string, a ...interface{}) {
	if t.ready() {
		t.slog.Warnf(format, a...)
	}
}

// Errorf issues an ERROR message, subject to the current throttle delay.
func (t *ThrottledLogger) Errorf(format string, a ...interface{}) {
	if t.ready() {
		t.slog.Errorf(format, a...)
	}
}

// Throttled returns a throttled logger unique to its call site: the first
// call from a given file:line allocates one, subsequent calls from the
// same site reuse it.
func Throttled(slog *zap.SugaredLogger, start, max time.Duration) *ThrottledLogger {
	var key string
	if _, file, line, ok := runtime.Caller(1); ok {
		key = file + ":" + strconv.Itoa(line)
	} else {
		key = "unknown"
	}

	if t, ok := tloggers[key]; ok {
		return t
	}
	t := &ThrottledLogger{
		slog:      slog.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
		next:      time.Now(),
		baseDelay: start,
		curDelay:  start,
		maxDelay:  max,
	}
	tloggers[key] = t
	return t
}
