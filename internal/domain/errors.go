package domain

import (
	"errors"
	"fmt"
)

// Error codes exposed to API callers.
const (
	CodeInvalidUsername     = "INVALID_USERNAME"
	CodeAlreadyJoined       = "ALREADY_JOINED"
	CodeTournamentNotOpen   = "TOURNAMENT_NOT_OPEN"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeTournamentFull      = "TOURNAMENT_FULL"
	CodePartialJoinFailure  = "PARTIAL_JOIN_FAILURE"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// PartialJoinError is returned when the wallet debit landed but the
// participant append did not. Compensated is true when the refund was applied.
type PartialJoinError struct {
	UserID       string
	TournamentID string
	Compensated  bool
	Cause        error
}

func (e *PartialJoinError) Error() string {
	return fmt.Sprintf("partial join user=%s tournament=%s compensated=%t: %v",
		e.UserID, e.TournamentID, e.Compensated, e.Cause)
}

func (e *PartialJoinError) Unwrap() error { return e.Cause }

// Join rejection constructors, in validation order.

func ErrInvalidUsername(msg string) *AppError {
	return &AppError{Code: CodeInvalidUsername, Message: msg, Status: 400}
}

func ErrAlreadyJoined() *AppError {
	return &AppError{Code: CodeAlreadyJoined, Message: "already joined this tournament", Status: 409}
}

func ErrTournamentNotOpen(status Status) *AppError {
	return &AppError{Code: CodeTournamentNotOpen, Message: fmt.Sprintf("tournament is %s, registration closed", status), Status: 409}
}

func ErrInsufficientBalance() *AppError {
	return &AppError{Code: CodeInsufficientBalance, Message: "insufficient wallet balance", Status: 400}
}

func ErrTournamentFull() *AppError {
	return &AppError{Code: CodeTournamentFull, Message: "tournament is full", Status: 409}
}

// ErrPartialJoin wraps a PartialJoinError so callers can both match the code
// and recover the reconciliation details with errors.As.
func ErrPartialJoin(p *PartialJoinError) *AppError {
	msg := "wallet charged but registration failed; pending reconciliation"
	if p.Compensated {
		msg = "registration failed; wallet charge was refunded"
	}
	return &AppError{Code: CodePartialJoinFailure, Message: msg, Status: 500, Cause: p}
}

func ErrStoreUnavailable(op string, cause error) *AppError {
	return &AppError{Code: CodeStoreUnavailable, Message: op + " failed", Status: 503, Cause: cause}
}

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: 403}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}
