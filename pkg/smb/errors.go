package smb

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this module matches at least one
// of ErrIO, ErrProtocol, a status sentinel, or a local usage error.
var (
	ErrIO       = errors.New("i/o error")
	ErrProtocol = errors.New("protocol error")

	ErrFraming  = fmt.Errorf("%w: bad NetBIOS frame", ErrProtocol)
	ErrPoisoned = fmt.Errorf("%w: transport unusable after earlier failure", ErrIO)
)

// Common SMB errors
var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("object not found")
	ErrAlreadyExists    = errors.New("object already exists")
	ErrShareNotFound    = errors.New("share not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrSessionExpired   = errors.New("session expired")
	ErrNotSupported     = errors.New("operation not supported")
)

// NTStatusError wraps an NT status code as an error
type NTStatusError struct {
	Status NTStatus
}

// Error implements the error interface
func (e *NTStatusError) Error() string {
	return fmt.Sprintf("NT status error: 0x%08X (%s)", uint32(e.Status), e.StatusName())
}

// StatusName returns a human-readable name for the status
func (e *NTStatusError) StatusName() string {
	if name, ok := statusNames[e.Status]; ok {
		return name
	}
	return "UNKNOWN"
}

// Unwrap exposes the sentinel the status maps to, if any.
func (e *NTStatusError) Unwrap() error {
	return sentinelFor(e.Status)
}

// NewNTStatusError creates a new NTStatusError
func NewNTStatusError(status NTStatus) *NTStatusError {
	return &NTStatusError{Status: status}
}

// AuthenticationError is returned when the server refuses the credentials.
// It never carries the password.
type AuthenticationError struct {
	Domain   string
	Username string
	Status   NTStatus
	Err      error
}

func (e *AuthenticationError) Error() string {
	user := e.Username
	if e.Domain != "" {
		user = e.Domain + `\` + user
	}
	if user == "" {
		user = "anonymous"
	}
	if e.Err != nil {
		return fmt.Sprintf("authentication failed for %s: %v", user, e.Err)
	}
	return fmt.Sprintf("authentication failed for %s: %s", user, e.Status)
}

// Unwrap returns ErrAuthFailed so callers can test with errors.Is.
func (e *AuthenticationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthFailed, e.Err}
	}
	return []error{ErrAuthFailed}
}

// StatusToError converts an NT status to an appropriate Go error
func StatusToError(status NTStatus) error {
	if status.IsSuccess() {
		return nil
	}
	return NewNTStatusError(status)
}

func sentinelFor(status NTStatus) error {
	switch {
	case status == StatusAccessDenied:
		return ErrAccessDenied
	case status == StatusNoSuchFile, status == StatusObjectNameNotFound, status == StatusObjectPathNotFound:
		return ErrNotFound
	case status == StatusObjectNameCollision:
		return ErrAlreadyExists
	case status == StatusBadNetworkName, status == StatusBadNetworkPath:
		return ErrShareNotFound
	case status.IsLogonFailure():
		return ErrAuthFailed
	case status == StatusNetworkSessionExpired, status == StatusUserSessionDeleted, status == StatusSMBBadUID:
		return ErrSessionExpired
	case status == StatusNotSupported:
		return ErrNotSupported
	case status == StatusInvalidParameter, status == StatusObjectNameInvalid:
		return ErrInvalidParameter
	default:
		return nil
	}
}
