package xui

import (
	"errors"
	"fmt"
)

// AuthError indicates the panel rejected the login or could not be reached for it
type AuthError struct {
	Endpoint string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login to %s failed: %v", e.Endpoint, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RemoteError indicates a downstream panel call failed after a successful login
type RemoteError struct {
	Endpoint   string
	Operation  Op
	StatusCode int // 0 for network errors and malformed bodies
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Operation, e.Endpoint, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsAuthError checks if an error is an AuthError
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsRemoteError checks if an error is a RemoteError
func IsRemoteError(err error) bool {
	var e *RemoteError
	return errors.As(err, &e)
}

// errMalformed is wrapped when a panel answers 2xx with something that is not JSON
var errMalformed = errors.New("malformed response")
