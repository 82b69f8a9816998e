package errors

import (
	"errors"
	"io/fs"
	"syscall"
)

// Class groups errors by how a copy or watch boundary must react to them.
type Class int

const (
	// ClassNone is the class of a nil error.
	ClassNone Class = iota
	// ClassMissingSource means the path does not exist; the operation is a no-op.
	ClassMissingSource
	// ClassTransient means the path is busy or locked by another process; suppressed.
	ClassTransient
	// ClassFatal is every other failure; logged and the current source is abandoned.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassMissingSource:
		return "missing-source"
	case ClassTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Classify returns the class of err, looking through wrapped errors.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	switch KindOf(err) {
	case SourceNotFound:
		return ClassMissingSource
	case ResourceBusy:
		return ClassTransient
	}

	if errors.Is(err, fs.ErrNotExist) {
		return ClassMissingSource
	}
	if errors.Is(err, syscall.EBUSY) {
		return ClassTransient
	}
	return ClassFatal
}

// IsBenign reports whether err can be dropped without reporting a failure.
func IsBenign(err error) bool {
	c := Classify(err)
	return c == ClassNone || c == ClassMissingSource || c == ClassTransient
}
