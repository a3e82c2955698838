package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindRateLimited
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate limited"
	case KindServer:
		return "server"
	}
	return "unknown"
}

var (
	// ErrSessionExpired is returned when a 401 survives the refresh-and-retry.
	ErrSessionExpired = errors.New("session expired, please log in again")
	ErrNotLoggedIn    = errors.New("not logged in")
)

// Error is a failed API call.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an *Error anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// errorBody covers both the {"error": ...} bodies of this backend and DRF style {"detail": ...}.
type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func newStatusError(status int, body []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		for _, m := range []string{eb.Error, eb.Detail, eb.Message} {
			if m != "" {
				e.Message = m
				break
			}
		}
	}

	switch e.Kind {
	case KindServer:
		e.Message = "Server error, please try again later."
	case KindRateLimited:
		if e.Message == "" {
			e.Message = "Too many requests, please slow down."
		}
	default:
		if e.Message == "" {
			e.Message = strings.TrimSpace(http.StatusText(status))
		}
	}
	return e
}
