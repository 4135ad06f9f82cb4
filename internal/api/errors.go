package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind says what a failed call means for the caller.
type Kind int

const (
	// KindTransient covers transport failures, 5xx and unreadable responses.
	// Retrying later may succeed.
	KindTransient Kind = iota
	// KindValidation is a request the server understood and refused.
	KindValidation
	// KindUnauthorized means the session token is missing or no longer valid.
	KindUnauthorized
	// KindNotImplemented means the server has no such route. The wishlist
	// degrades to local storage on it.
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotImplemented:
		return "not_implemented"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failed shop API call. Message holds the server's own text when
// it sent one and is empty for transport failures.
type Error struct {
	Op         string
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s request failed: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s request failed: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s request failed: status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindTransient when err did not come from
// this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}

func IsNotImplemented(err error) bool {
	return err != nil && KindOf(err) == KindNotImplemented
}

// ServerMessage returns the server's message for err, or fallback.
func ServerMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// classify maps a rejected response onto a Kind. Older shop servers answer
// missing routes with 200 and success:false, so their wording ("Route not
// found") is still recognised after the status checks. A 401, 403 or 5xx
// keeps its status kind whatever the message says.
func classify(status int, message string) Kind {
	switch {
	case status == http.StatusNotFound, status == http.StatusMethodNotAllowed, status == http.StatusNotImplemented:
		return KindNotImplemented
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status >= http.StatusInternalServerError:
		return KindTransient
	case strings.Contains(message, "not found"), strings.Contains(message, "Route"):
		return KindNotImplemented
	}
	return KindValidation
}
