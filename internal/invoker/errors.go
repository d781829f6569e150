package invoker

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for retry decisions.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindRateLimit   Kind = "rate_limit"
	KindUnavailable Kind = "unavailable"
	KindValidation  Kind = "validation"
	KindAuth        Kind = "auth"
	KindUnknown     Kind = "unknown"
)

// ErrRetryExhausted marks a call that failed transiently on every attempt.
var ErrRetryExhausted = errors.New("invoker: retry attempts exhausted")

// ServiceError is a classified failure from an external service. Backends
// wrap their transport errors in one of these so the invoker can decide
// whether another attempt makes sense.
type ServiceError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Transient reports whether another attempt could succeed. Unknown failures
// are treated as transient.
func (e *ServiceError) Transient() bool {
	switch e.Kind {
	case KindValidation, KindAuth:
		return false
	}
	return true
}

// NewServiceError builds a classified error wrapping cause.
func NewServiceError(kind Kind, message string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, Err: cause}
}
