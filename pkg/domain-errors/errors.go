// Package domainerrors defines the coded error type returned by every
// service in the module. Handlers translate codes into HTTP statuses; tests
// assert on codes rather than on message text.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a failure. Codes are stable and appear verbatim in API
// error envelopes.
type Code string

const (
	// Generic codes.
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeForbidden          Code = "forbidden"

	// Ledger codes.
	CodeServiceSuspended   Code = "service_suspended"
	CodeUnauthorized       Code = "unauthorized"
	CodeUnknownAirline     Code = "unknown_airline"
	CodeUnknownFlight      Code = "unknown_flight"
	CodeUnknownCandidate   Code = "unknown_candidate"
	CodeUnknownPolicy      Code = "unknown_policy"
	CodeDuplicateFlight    Code = "duplicate_flight"
	CodeDuplicateVote      Code = "duplicate_vote"
	CodeAlreadyRegistered  Code = "already_registered"
	CodeAlreadyFunded      Code = "already_funded"
	CodeInsufficientFunds  Code = "insufficient_funds"
	CodePremiumExceedsCap  Code = "premium_exceeds_cap"
	CodeNotInsurable       Code = "not_insurable"
	CodeInsufficientCredit Code = "insufficient_credit"
)

// Error carries a Code, a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost coded error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias for HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the status written by the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeUnknownAirline, CodeUnknownFlight, CodeUnknownCandidate, CodeUnknownPolicy:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateFlight, CodeDuplicateVote, CodeAlreadyRegistered, CodeAlreadyFunded:
		return http.StatusConflict
	case CodeInvariantViolation, CodeInsufficientFunds, CodePremiumExceedsCap, CodeNotInsurable, CodeInsufficientCredit:
		return http.StatusUnprocessableEntity
	case CodeServiceSuspended:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
