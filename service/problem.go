package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ProblemKind classifies why a schedule fetch failed.
type ProblemKind int

const (
	ProblemUnknown ProblemKind = iota
	ProblemBadData
	ProblemTimeout
	ProblemCannotConnect
	ProblemUnauthorized
	ProblemForbidden
	ProblemNotFound
	ProblemRejected
	ProblemServer
)

func (k ProblemKind) String() string {
	switch k {
	case ProblemBadData:
		return "bad-data"
	case ProblemTimeout:
		return "timeout"
	case ProblemCannotConnect:
		return "cannot-connect"
	case ProblemUnauthorized:
		return "unauthorized"
	case ProblemForbidden:
		return "forbidden"
	case ProblemNotFound:
		return "not-found"
	case ProblemRejected:
		return "rejected"
	case ProblemServer:
		return "server"
	default:
		return "unknown"
	}
}

// Temporary reports whether retrying later has a chance of succeeding.
func (k ProblemKind) Temporary() bool {
	switch k {
	case ProblemTimeout, ProblemCannotConnect, ProblemServer, ProblemUnknown:
		return true
	default:
		return false
	}
}

// ProblemFromStatus maps a non-2xx HTTP status to a problem kind.
func ProblemFromStatus(code int) ProblemKind {
	switch {
	case code == http.StatusUnauthorized:
		return ProblemUnauthorized
	case code == http.StatusForbidden:
		return ProblemForbidden
	case code == http.StatusNotFound:
		return ProblemNotFound
	case code == http.StatusRequestTimeout:
		return ProblemTimeout
	case code >= 400 && code < 500:
		return ProblemRejected
	case code >= 500:
		return ProblemServer
	default:
		return ProblemUnknown
	}
}

// APIError is returned by a Fetcher when a showtime snapshot could not be
// produced.
type APIError struct {
	Kind       ProblemKind
	StatusCode int
	Endpoint   string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e == nil {
		return "schedule api error"
	}
	msg := "schedule api error: " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the problem kind from err. Errors that did not come from a
// Fetcher are reported as ProblemUnknown.
func KindOf(err error) ProblemKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ProblemUnknown
}

// IsNotFound reports whether the error represents a 404 from the API.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == ProblemNotFound
}
