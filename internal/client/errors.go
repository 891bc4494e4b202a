package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential is returned before any request when the caller has no
	// session credential.
	ErrNoCredential = errors.New("no credential: sign in first")

	// ErrNotAcknowledged means the server answered 2xx without the success
	// marker of the operation.
	ErrNotAcknowledged = errors.New("operation not acknowledged by server")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// TransportError wraps a failure to reach the server or read its answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
