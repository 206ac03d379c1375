package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no OTP record exists for the phone number
var ErrNotFound = errors.New("no OTP found for this phone number")

// ErrConflict is returned when concurrent updates kept invalidating a verification
var ErrConflict = errors.New("concurrent verification in progress, try again")

// ErrRateLimited is returned when the per-phone issue limit is exhausted
var ErrRateLimited = errors.New("rate limit exceeded")

// ValidationError rejects a request before any side effect
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StateReason names the terminal state that rejected a verification
type StateReason string

const (
	ReasonAlreadyUsed         StateReason = "AlreadyUsed"
	ReasonExpired             StateReason = "Expired"
	ReasonMaxAttemptsExceeded StateReason = "MaxAttemptsExceeded"
)

// StateError is a terminal rejection; only a new issuance recovers from it.
type StateError struct {
	Reason StateReason
}

func (e *StateError) Error() string {
	switch e.Reason {
	case ReasonAlreadyUsed:
		return "OTP already used"
	case ReasonExpired:
		return "OTP has expired"
	case ReasonMaxAttemptsExceeded:
		return "Maximum verification attempts exceeded"
	}
	return string(e.Reason)
}

// MismatchError is a wrong code; the client may retry while AttemptsRemaining > 0.
type MismatchError struct {
	AttemptsRemaining int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("Invalid OTP (%d attempts remaining)", e.AttemptsRemaining)
}

// Operations reported in DependencyError.Op
const (
	OpStoreOTP         = "store OTP"
	OpLoadOTP          = "load OTP"
	OpUpdateOTP        = "update OTP"
	OpSendSMS          = "send SMS"
	OpProvisionAccount = "provision account"
)

// DependencyError wraps a failure of the store, the SMS gateway or the identity provider
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }

// IsState reports whether err is a StateError with the given reason
func IsState(err error, reason StateReason) bool {
	var se *StateError
	return errors.As(err, &se) && se.Reason == reason
}
