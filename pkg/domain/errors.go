package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionBusy is returned when the session lease could not be acquired in time.
var ErrSessionBusy = errors.New("session busy")

// ErrWalletNotFound is returned when a user has no stored wallet.
var ErrWalletNotFound = errors.New("wallet not found")

// ErrNotFound is returned by repositories for missing records.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies failures by how the session must react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	// KindUserInput: malformed input, re-prompt and keep the workflow.
	KindUserInput
	// KindSessionState: scratch state incoherent for the step, reset to idle.
	KindSessionState
	// KindUpstream: a collaborator call failed.
	KindUpstream
	// KindAuth: no bound identity.
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindUserInput:
		return "user_input"
	case KindSessionState:
		return "session_state"
	case KindUpstream:
		return "upstream"
	case KindAuth:
		return "auth"
	}
	return "internal"
}

// Error is a classified failure. Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
	// Retryable upstream failures leave the workflow in place.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func UserInput(message string) *Error {
	return &Error{Kind: KindUserInput, Message: message}
}

func SessionState(message string) *Error {
	return &Error{Kind: KindSessionState, Message: message}
}

func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Cause: cause}
}

func RetryableUpstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Cause: cause, Retryable: true}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// AsError extracts a classified error from err.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
