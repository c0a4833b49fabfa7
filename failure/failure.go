// Package failure holds the tagged error kinds used across cosmos.
//
// Errors are matched by Kind, not by Go type, so a single Error type covers
// startup failures, configuration misuse and the check failures reported
// back to users.
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Fatal aborts startup.
	Fatal Kind = iota
	// Degraded is logged and startup continues.
	Degraded
	// ConfigMisuse means a deployment left out something the code path requires.
	ConfigMisuse
	// BadCredential is a malformed monitoring credential.
	BadCredential
	NotPrime
	GuildNotPrime
	UserNotPrime
	FunctionDisabled
	BotDisabled
)

const primeMessage = "Click here to get prime and unlock all features including this."

var kindNames = map[Kind]string{
	Fatal:            "fatal",
	Degraded:         "degraded",
	ConfigMisuse:     "config misuse",
	BadCredential:    "bad credential",
	NotPrime:         "not prime",
	GuildNotPrime:    "guild not prime",
	UserNotPrime:     "user not prime",
	FunctionDisabled: "function disabled",
	BotDisabled:      "bot disabled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CheckFailure reports whether the kind is shown to the invoking user
// instead of being logged as an internal error.
func (k Kind) CheckFailure() bool {
	switch k {
	case NotPrime, GuildNotPrime, UserNotPrime, FunctionDisabled, BotDisabled:
		return true
	}
	return false
}

// Prime reports whether the kind belongs to the not-prime family.
func (k Kind) Prime() bool {
	return k == NotPrime || k == GuildNotPrime || k == UserNotPrime
}

func (k Kind) defaultMessage() string {
	switch k {
	case NotPrime, GuildNotPrime, UserNotPrime:
		return primeMessage
	case FunctionDisabled:
		return "This function is disabled here."
	case BotDisabled:
		return "Cosmos is currently disabled."
	}
	return k.String()
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an Error of the given kind. An empty message falls back to the
// kind's default message.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kind.defaultMessage()
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *Error {
	e := New(kind, message)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, failure.New(k, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain. Errors
// without one are Fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}

// Is reports whether any *Error in err's chain carries the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Message returns the user facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
