package backend

import (
	"errors"
	"fmt"
)

// FailureClass buckets request failures so callers can decide whether a
// mutation is worth queuing for later delivery.
type FailureClass string

const (
	// ClassNetwork means no response was received; the device is likely
	// offline.
	ClassNetwork FailureClass = "network_unavailable"
	// ClassEndpoint means the backend answered but rejected the request
	// shape (404/405/410) or every candidate shape was exhausted.
	ClassEndpoint FailureClass = "endpoint_unavailable"
	// ClassAuth means the stored credential was rejected (401/403).
	ClassAuth FailureClass = "auth_expired"
	// ClassValidation means the request itself is invalid (400/422);
	// retrying it cannot succeed.
	ClassValidation FailureClass = "validation"
	// ClassServer means the backend failed internally (5xx).
	ClassServer FailureClass = "server_error"
)

// Error is a classified request failure. StatusCode is zero when no
// response was received.
type Error struct {
	Class      FailureClass
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode > 0:
		return fmt.Sprintf("backend: %s: %s (status=%d)", e.Class, e.Detail, e.StatusCode)
	case e.Detail != "":
		return fmt.Sprintf("backend: %s: %s", e.Class, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("backend: %s: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("backend: %s", e.Class)
}

func (e *Error) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP response code onto the failure taxonomy.
func classifyStatus(status int) FailureClass {
	switch {
	case status == 401 || status == 403:
		return ClassAuth
	case status == 404 || status == 405 || status == 410:
		return ClassEndpoint
	case status == 400 || status == 422:
		return ClassValidation
	case status >= 500:
		return ClassServer
	}
	return ClassEndpoint
}

// ClassOf extracts the failure class from err, or "" when err carries none.
func ClassOf(err error) FailureClass {
	var be *Error
	if errors.As(err, &be) {
		return be.Class
	}
	return ""
}

// IsQueueable reports whether the failed mutation should be recorded for a
// later sync attempt. Network, endpoint and server failures are transient
// from the client's point of view; auth and validation failures are not.
func IsQueueable(err error) bool {
	switch ClassOf(err) {
	case ClassNetwork, ClassEndpoint, ClassServer:
		return true
	}
	return false
}

// IsAuthExpired reports whether err means the stored credential must be
// invalidated and the user re-authenticated.
func IsAuthExpired(err error) bool { return ClassOf(err) == ClassAuth }

// IsValidation reports whether err means the request itself was invalid.
func IsValidation(err error) bool { return ClassOf(err) == ClassValidation }

// IsNetwork reports whether err means no response was received at all.
func IsNetwork(err error) bool { return ClassOf(err) == ClassNetwork }
