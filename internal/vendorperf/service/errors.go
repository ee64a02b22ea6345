package service

import (
	"errors"
	"fmt"

	"github.com/agogsaas/vendorperf/internal/vendorperf/repository"
	"github.com/agogsaas/vendorperf/internal/vendorperf/tenantlock"
	"github.com/google/uuid"
)

// Kind 错误类别，决定API层的响应码
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so callers can write
// errors.Is(err, service.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrTransient  = &Error{Kind: KindTransient}
)

// KindOf 取出错误类别，非服务错误视为 transient
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

func notFoundf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func validationf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func conflictf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// storeErr classifies an error coming back from the store. Service errors
// pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Message: "record not found", Err: err}
	}
	if errors.Is(err, tenantlock.ErrHeld) {
		return &Error{Kind: KindConflict, Op: op, Message: "another run for this tenant is in progress", Err: err}
	}
	return &Error{Kind: KindTransient, Op: op, Message: "data store unavailable", Err: err}
}

func newID() string {
	return uuid.New().String()[:32]
}
