// Package errors provides standardized error handling for buildcopy.
// It defines the error kinds raised while copying and watching, typed errors
// carrying path or parameter context, and a classification function that
// separates missing sources and transient lock errors from fatal failures.
package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
	// Join returns an error that wraps the given errors
	Join = errors.Join
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	SourceNotFound
	FileAccessDenied
	InvalidPath
	FileCreateFailed
	FileOperationFailed
	ResourceBusy
	// Config error kinds
	InvalidConfig
	ConfigUnreadable
	// Pattern error kinds
	InvalidPattern
	// Watch error kinds
	WatchFailed
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// PatternError represents a glob pattern that could not be compiled
type PatternError struct {
	ApplicationError
	pattern string
}

// NewPatternError creates a new pattern error
func NewPatternError(msg string, pattern string, err error) *PatternError {
	return &PatternError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: InvalidPattern,
		},
		pattern: pattern,
	}
}

// Error returns the pattern error message
func (e *PatternError) Error() string {
	if e.pattern != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %q: %v", e.msg, e.pattern, e.err)
		}
		return fmt.Sprintf("%s: %q", e.msg, e.pattern)
	}
	return e.ApplicationError.Error()
}

// Pattern returns the offending pattern
func (e *PatternError) Pattern() string {
	return e.pattern
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: Unknown,
	}
}

// KindOf returns the kind of the first application error in err's chain.
func KindOf(err error) ErrorKind {
	var appErr interface{ Kind() ErrorKind }
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return Unknown
}

// KindFor returns ResourceBusy when err reports a busy or locked path, and
// kind otherwise.
func KindFor(kind ErrorKind, err error) ErrorKind {
	if errors.Is(err, syscall.EBUSY) {
		return ResourceBusy
	}
	return kind
}

// IsSourceNotFound checks if the error is a missing source error
func IsSourceNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == SourceNotFound
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsInvalidPattern checks if the error is an invalid pattern error
func IsInvalidPattern(err error) bool {
	var patternErr *PatternError
	return errors.As(err, &patternErr)
}
