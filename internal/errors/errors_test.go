package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	// Test creating a new error
	err := New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())

	// Test creating a new formatted error
	err = Newf("formatted %s", "error")
	assert.NotNil(t, err)
	assert.Equal(t, "formatted error", err.Error())

	// Check that the error is an ApplicationError
	var appErr *ApplicationError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, "formatted error", appErr.Error())
	assert.Equal(t, Unknown, appErr.Kind())
}

func TestWrapping(t *testing.T) {
	origErr := New("original error")
	wrappedErr := Wrap(origErr, "wrapped")
	assert.NotNil(t, wrappedErr)
	assert.Equal(t, "wrapped: original error", wrappedErr.Error())
	assert.Equal(t, origErr, Unwrap(wrappedErr))

	wrappedFormatted := Wrapf(origErr, "formatted %s", "wrapper")
	assert.Equal(t, "formatted wrapper: original error", wrappedFormatted.Error())

	// Wrapping nil returns nil
	assert.Nil(t, Wrap(nil, "wrapper"))
	assert.Nil(t, Wrapf(nil, "formatted %s", "wrapper"))

	deepWrapped := Wrap(wrappedErr, "deeper")
	assert.Equal(t, "deeper: wrapped: original error", deepWrapped.Error())
	assert.True(t, Is(deepWrapped, origErr))
}

func TestFileError(t *testing.T) {
	fileErr := NewFileError("cannot access", "/path/to/file", FileAccessDenied, nil)
	assert.Equal(t, "cannot access: /path/to/file", fileErr.Error())
	assert.Equal(t, "/path/to/file", fileErr.Path())
	assert.Equal(t, FileAccessDenied, fileErr.Kind())

	origErr := fmt.Errorf("permission denied")
	fileErr = NewFileError("cannot access", "/path/to/file", FileAccessDenied, origErr)
	assert.Equal(t, "cannot access: /path/to/file: permission denied", fileErr.Error())
	assert.Equal(t, origErr, Unwrap(fileErr))

	assert.True(t, IsSourceNotFound(NewFileError("source does not exist", "/missing", SourceNotFound, nil)))
	assert.False(t, IsSourceNotFound(fileErr))
}

func TestConfigError(t *testing.T) {
	configErr := NewConfigError("invalid value", "interval", InvalidConfig, nil)
	assert.Equal(t, "invalid value: interval", configErr.Error())
	assert.Equal(t, "interval", configErr.Param())
	assert.True(t, IsInvalidConfig(configErr))
	assert.True(t, IsInvalidConfig(Wrap(configErr, "loading")))
	assert.False(t, IsInvalidConfig(New("other")))
}

func TestPatternError(t *testing.T) {
	cause := errors.New("unexpected end of input")
	patternErr := NewPatternError("invalid pattern", "[abc", cause)
	assert.Equal(t, `invalid pattern: "[abc": unexpected end of input`, patternErr.Error())
	assert.Equal(t, "[abc", patternErr.Pattern())
	assert.Equal(t, InvalidPattern, patternErr.Kind())
	assert.True(t, IsInvalidPattern(Wrap(patternErr, "matching")))
	assert.Equal(t, InvalidPattern, KindOf(Wrap(patternErr, "matching")))
}

func TestClassify(t *testing.T) {
	busy := &os.PathError{Op: "unlinkat", Path: "/dist/locked", Err: syscall.EBUSY}
	missing := &os.PathError{Op: "stat", Path: "/src/none", Err: syscall.ENOENT}
	denied := &os.PathError{Op: "open", Path: "/root/secret", Err: syscall.EACCES}

	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"not exist sentinel", fs.ErrNotExist, ClassMissingSource},
		{"path error not exist", missing, ClassMissingSource},
		{"wrapped not exist", NewFileError("copy failed", "/src/none", FileOperationFailed, missing), ClassMissingSource},
		{"source not found kind", NewFileError("source does not exist", "/src", SourceNotFound, nil), ClassMissingSource},
		{"busy", busy, ClassTransient},
		{"wrapped busy", fmt.Errorf("pruning: %w", busy), ClassTransient},
		{"busy kind", NewFileError("locked", "/dist", ResourceBusy, nil), ClassTransient},
		{"permission", denied, ClassFatal},
		{"plain", New("boom"), ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}

	assert.Equal(t, ResourceBusy, KindFor(FileOperationFailed, busy))
	assert.Equal(t, FileOperationFailed, KindFor(FileOperationFailed, denied))
	assert.Equal(t, ClassTransient, Classify(NewFileError("cannot remove", "/dist/locked", KindFor(FileOperationFailed, busy), busy)))

	assert.True(t, IsBenign(busy))
	assert.True(t, IsBenign(missing))
	assert.False(t, IsBenign(denied))
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "fatal", ClassFatal.String())
}
