package ews

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("ews: invalid credentials")
	ErrConnection         = errors.New("ews: connection failure")
	ErrRateLimited        = errors.New("ews: rate limited")
	ErrMalformedResponse  = errors.New("ews: malformed response")
	ErrInternal           = errors.New("ews: internal server error")
)

// ParseError reports a response body that could not be turned into prices.
// It always matches ErrMalformedResponse with errors.Is.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("ews: parse response: %v", e.Err)
	}
	return fmt.Sprintf("ews: parse field %q: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformedResponse, e.Err}
}

// StatusError is a non-2xx answer from the API, classified into one of the
// error kinds above.
type StatusError struct {
	Code int
	Kind error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v (status %d %s)", e.Kind, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// ErrorFromStatus maps an HTTP status code onto the error kinds. It returns
// nil for any 2xx code.
func ErrorFromStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &StatusError{Code: code, Kind: ErrInvalidCredentials}
	case code == http.StatusTooManyRequests:
		return &StatusError{Code: code, Kind: ErrRateLimited}
	case code >= 500:
		return &StatusError{Code: code, Kind: ErrInternal}
	default:
		return &StatusError{Code: code, Kind: ErrMalformedResponse}
	}
}

func connectionError(err error) error {
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
