package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorClass categorizes a provider failure for retry decisions.
type ErrorClass string

const (
	ClassRateLimited ErrorClass = "rate_limited"
	ClassOverloaded  ErrorClass = "overloaded"
	ClassTimeout     ErrorClass = "timeout"
	ClassUnavailable ErrorClass = "unavailable"
	ClassFatal       ErrorClass = "fatal"
)

// Retryable reports whether a failure of this class is worth retrying.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassRateLimited, ClassOverloaded, ClassTimeout, ClassUnavailable:
		return true
	}
	return false
}

// Error is a classified provider failure.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Class, e.Message)
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool { return e.Class.Retryable() }

// ClassifyStatus maps an HTTP status code to an error class.
func ClassifyStatus(code int) ErrorClass {
	switch code {
	case http.StatusTooManyRequests:
		return ClassRateLimited
	case http.StatusServiceUnavailable:
		return ClassOverloaded
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ClassTimeout
	case http.StatusInternalServerError, http.StatusBadGateway:
		return ClassUnavailable
	}
	return ClassFatal
}

// transientMarkers mirrors the upstream API's quota/overload vocabulary. A match
// anywhere in the message marks the failure retryable even without a status code.
var transientMarkers = []string{
	"rate_limit",
	"rate limit",
	"quota",
	"resource_exhausted",
	"timeout",
	"overloaded",
	"429",
	"500",
	"502",
	"503",
}

// ClassifyError wraps err as a classified *Error. Context timeouts map to
// ClassTimeout; transport errors and transient message markers map to a
// retryable class; everything else is fatal.
func ClassifyError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: ClassTimeout, Message: err.Error()}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			class := ClassUnavailable
			switch marker {
			case "rate_limit", "rate limit", "quota", "resource_exhausted", "429":
				class = ClassRateLimited
			case "timeout":
				class = ClassTimeout
			case "503", "overloaded":
				class = ClassOverloaded
			}
			return &Error{Class: class, Message: err.Error()}
		}
	}

	return &Error{Class: ClassFatal, Message: err.Error()}
}
