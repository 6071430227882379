package model

import "errors"

var (
	ErrInvalidState = errors.New("invalid state")
	ErrNotAllowed   = errors.New("actor not allowed")
	ErrWrongKind    = errors.New("wrong listing kind")
)

// TransitionError is returned by the state machines when a guard refuses a
// transition. Reason wraps one of ErrInvalidState, ErrNotAllowed or ErrWrongKind.
type TransitionError struct {
	Reason error
	Msg    string
}

func (e *TransitionError) Error() string {
	return e.Msg
}

func (e *TransitionError) Unwrap() error {
	return e.Reason
}

func refuse(reason error, msg string) error {
	return &TransitionError{Reason: reason, Msg: msg}
}
