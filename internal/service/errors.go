package service

import (
	"errors"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindBusiness     Kind = "business"
	KindUnauthorized Kind = "unauthorized"
	KindUnexpected   Kind = "unexpected"
)

// Error is the only error type services return. Msg is safe to show to the
// caller for every kind except KindUnexpected.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Business(msg string) error {
	return &Error{Kind: KindBusiness, Msg: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

// Unexpected wraps err unless it already is a service error.
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindUnexpected, Msg: "unexpected error", Err: err}
}

// KindOf reports the kind of err; anything that is not a service error is unexpected.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != KindUnexpected {
		return se.Msg
	}
	return "internal error"
}

// fromGuard remaps a refused state transition to a business error with the same message.
func fromGuard(err error) error {
	var te *model.TransitionError
	if errors.As(err, &te) {
		return &Error{Kind: KindBusiness, Msg: te.Msg, Err: te}
	}
	return Unexpected(err)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(msg)
	}
	return Unexpected(err)
}
