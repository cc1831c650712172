package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindRecognitionEmpty Kind = iota + 1
	KindServiceUnavailable
	KindUnsupportedAction
	KindInputInvalid
)

func (k Kind) String() string {
	switch k {
	case KindRecognitionEmpty:
		return "recognition_empty"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindUnsupportedAction:
		return "unsupported_action"
	case KindInputInvalid:
		return "input_invalid"
	default:
		return "unknown"
	}
}

// Error is the single error shape every collaborator failure is normalized
// into before it reaches a handler.
type Error struct {
	Kind    Kind
	Service string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Service, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s [%s]", e.Service, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of service and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Service == "" && t.Cause == nil && t.Kind == e.Kind
}

var (
	ErrRecognitionEmpty   = &Error{Kind: KindRecognitionEmpty}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrUnsupported        = &Error{Kind: KindUnsupportedAction}
	ErrInputInvalid       = &Error{Kind: KindInputInvalid}
)

func Unavailable(service string, cause error) error {
	return &Error{Kind: KindServiceUnavailable, Service: service, Cause: cause}
}

func Unsupported(action string, cause error) error {
	return &Error{Kind: KindUnsupportedAction, Service: action, Cause: cause}
}

func Invalid(what string, cause error) error {
	return &Error{Kind: KindInputInvalid, Service: what, Cause: cause}
}

// KindOf reports the taxonomy kind of err. Unclassified errors count as
// ServiceUnavailable.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServiceUnavailable
}
