package backend

import (
	"errors"
	"fmt"
)

// Failure classes.
var (
	ErrTransport = errors.New("backend unreachable")
	ErrBackend   = errors.New("backend returned an error status")
	ErrMalformed = errors.New("malformed backend response")
)

// Per-operation failures.
var (
	ErrSearchFailed = errors.New("search failed")
	ErrUploadFailed = errors.New("upload failed")
	ErrListFailed   = errors.New("failed to fetch videos")
	ErrDeleteFailed = errors.New("failed to delete video")
)

type Op string

const (
	OpSearch Op = "search"
	OpUpload Op = "upload"
	OpList   Op = "list"
	OpDelete Op = "delete"
)

// Error is returned by every Client operation. It matches both the
// operation sentinel (ErrSearchFailed, ...) and the class sentinel
// (ErrTransport, ErrBackend, ErrMalformed) with errors.Is.
type Error struct {
	Op      Op
	Class   error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := opSentinel(e.Op).Error()
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", msg, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", msg, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Class || target == opSentinel(e.Op)
}

func opSentinel(op Op) error {
	switch op {
	case OpSearch:
		return ErrSearchFailed
	case OpUpload:
		return ErrUploadFailed
	case OpList:
		return ErrListFailed
	case OpDelete:
		return ErrDeleteFailed
	}
	return ErrBackend
}

func transportError(op Op, err error) *Error {
	return &Error{Op: op, Class: ErrTransport, Err: err}
}

func statusError(op Op, status int, body string) *Error {
	return &Error{Op: op, Class: ErrBackend, Status: status, Message: body}
}

func malformedError(op Op, err error) *Error {
	return &Error{Op: op, Class: ErrMalformed, Err: err}
}
