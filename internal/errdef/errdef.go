// Package errdef defines the error kinds shared across postbank packages.
//
// Every error crossing a package boundary is an *Error carrying a Kind.
// Callers branch on the kind with errors.Is and the package sentinels:
//
//	if errors.Is(err, errdef.ErrValidation) { ... }
package errdef

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	// KindValidation is a structurally invalid interchange document.
	KindValidation Kind = "validation"
	// KindFormat is a syntax error in serialized text.
	KindFormat Kind = "format"
	// KindStorage is a durable-engine failure during a write.
	KindStorage Kind = "storage"
	// KindTransport is a network failure. It never leaves the dispatcher.
	KindTransport Kind = "transport"
	// KindInvalidInput is caller misuse detected before any network attempt.
	KindInvalidInput Kind = "invalid_input"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrFormat       = &Error{Kind: KindFormat}
	ErrStorage      = &Error{Kind: KindStorage}
	ErrTransport    = &Error{Kind: KindTransport}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Validation returns a KindValidation error.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// Format wraps a parse failure as KindFormat.
func Format(op, msg string, cause error) error {
	return &Error{Kind: KindFormat, Op: op, Message: msg, Cause: cause}
}

// Storage wraps a durable-engine failure as KindStorage.
func Storage(op string, cause error) error {
	return &Error{Kind: KindStorage, Op: op, Message: "storage failure", Cause: cause}
}

// Transport wraps a network failure as KindTransport.
func Transport(op string, cause error) error {
	return &Error{Kind: KindTransport, Op: op, Message: "transport failure", Cause: cause}
}

// InvalidInput returns a KindInvalidInput error with a formatted message.
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}
