// Package log provides structured logging for buildcopy on top of logrus.
//
// Package-level functions write through a global logger that can be replaced
// with Configure. Fields are attached with F and LogWithFields; application
// errors get their kind and path or parameter attached by LogWithError.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"buildcopy/internal/errors"

	"github.com/sirupsen/logrus"
)

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

type settings struct {
	out      io.Writer
	json     bool
	filePath string
}

// Option configures a Logger
type Option func(*settings)

// WithOutput sends log output to w instead of stdout
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		s.out = w
	}
}

// WithJSON switches to JSON formatted entries
func WithJSON() Option {
	return func(s *settings) {
		s.json = true
	}
}

// WithFile writes log entries to path in addition to stdout
func WithFile(path string) Option {
	return func(s *settings) {
		s.filePath = path
	}
}

// Logger writes leveled, structured log entries.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

// NewLogger creates a Logger. Without options it writes text to stdout.
func NewLogger(opts ...Option) *Logger {
	s := &settings{out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}

	l := &Logger{}
	out := s.out
	if s.filePath != "" {
		f, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", s.filePath, err)
		} else {
			l.file = f
			out = io.MultiWriter(s.out, f)
		}
	}

	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(logrus.DebugLevel)
	if s.json {
		base.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyTime: "timestamp",
			},
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}

	l.entry = logrus.NewEntry(base)
	return l
}

// Configure replaces the global logger, closing the log file of the one it
// replaces.
func Configure(opts ...Option) {
	old := logger
	logger = NewLogger(opts...)
	_ = old.Close()
}

// Close releases the global logger's log file, if any.
func Close() error {
	return logger.Close()
}

// SetDebug enables or disables debug output for all loggers
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(data), file: l.file}
}

// WithError returns a child logger carrying err and, for application
// errors, its kind and path or parameter.
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

// WithContext returns a child logger bound to ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	return &Logger{entry: l.entry.WithContext(ctx), file: l.file}
}

func (l *Logger) Debug(args ...interface{}) {
	if isDebug.Load() {
		l.log(logrus.DebugLevel, fmt.Sprint(args...))
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		l.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Info(args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprint(args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(args ...interface{}) {
	l.log(logrus.WarnLevel, fmt.Sprint(args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprint(args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level logrus.Level, msg string) {
	l.entry.WithField("caller", caller()).Log(level, msg)
}

// caller returns file:line of the first frame outside this file.
func caller() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasSuffix(frame.File, "/internal/log/logger.go") {
			return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}

	fields := []Field{F("error", err.Error()), F("error_kind", int(errors.KindOf(err)))}

	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var patternErr *errors.PatternError
	if errors.As(err, &patternErr) && patternErr.Pattern() != "" {
		fields = append(fields, F("pattern", patternErr.Pattern()))
	}
	return fields
}

// LogWithFields returns the global logger with fields attached
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the global logger with err attached
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err with a message at error level
func LogError(err error, msg string) {
	logger.WithError(err).Error(msg)
}

func Debug(args ...interface{}) {
	logger.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Info(args ...interface{}) {
	logger.Info(args...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warn(args ...interface{}) {
	logger.Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Error(args ...interface{}) {
	logger.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}
