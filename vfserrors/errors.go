// Package vfserrors defines the POSIX-style error taxonomy that every
// operation in memvfs fails with.
package vfserrors

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Code is a syscall.Errno-compatible error code. Using the unix package's
// Errno type rather than inventing our own keeps the numeric values stable
// for callers that compare against golang.org/x/sys/unix constants.
type Code = unix.Errno

// The subset of POSIX codes this module's operations can fail with.
const (
	ENOENT    = unix.ENOENT
	ENOTDIR   = unix.ENOTDIR
	EISDIR    = unix.EISDIR
	EACCES    = unix.EACCES
	EPERM     = unix.EPERM
	EEXIST    = unix.EEXIST
	EBADF     = unix.EBADF
	EINVAL    = unix.EINVAL
	EROFS     = unix.EROFS
	ELOOP     = unix.ELOOP
	ENOTEMPTY = unix.ENOTEMPTY
)

// PathError is the error type returned by every memvfs operation that
// fails. It carries the syscall label, the code, and up to two path
// arguments (the second is used for two-path operations like rename/link).
type PathError struct {
	Op    string
	Code  Code
	Path  string
	Path2 string
}

func (e *PathError) Error() string {
	switch {
	case e.Path2 != "":
		return fmt.Sprintf("%s %s -> %s: %s", e.Op, e.Path, e.Path2, e.Code.Error())
	case e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Code.Error())
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Code.Error())
	}
}

func (e *PathError) Unwrap() error { return e.Code }

// New builds a PathError for a single-path operation.
func New(op string, code Code, path string) error {
	return &PathError{Op: op, Code: code, Path: path}
}

// New2 builds a PathError for a two-path operation (rename, link).
func New2(op string, code Code, path, path2 string) error {
	return &PathError{Op: op, Code: code, Path: path, Path2: path2}
}

// Is reports whether err is a PathError carrying the given code.
func Is(err error, code Code) bool {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or 0 if err isn't a PathError.
func CodeOf(err error) Code {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}
