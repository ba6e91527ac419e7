package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrInvalidAddress rejects malformed account identifiers before any external call.
	ErrInvalidAddress = New("INVALID_ADDRESS", http.StatusBadRequest, "invalid account address")

	// ErrWalletRejected marks a signature request declined by the user. A normal
	// outcome, not a fault.
	ErrWalletRejected = New("WALLET_REJECTED", http.StatusConflict, "signature request rejected by wallet")

	// ErrWrongNetwork is returned when the session chain id does not match the
	// configured chain and switching failed.
	ErrWrongNetwork = New("WRONG_NETWORK", http.StatusConflict, "wallet connected to the wrong network")

	// ErrAlreadyVerified surfaces a repeated on-chain verification as its own
	// condition instead of a generic revert.
	ErrAlreadyVerified = New("ALREADY_VERIFIED", http.StatusConflict, "institution already verified on chain")

	// ErrDuplicateContent guards against issuing a credential for a CID that is
	// already recorded on chain.
	ErrDuplicateContent = New("DUPLICATE_CONTENT", http.StatusConflict, "content already issued on chain")

	// ErrChainRevert covers reverts without a recognised reason.
	ErrChainRevert = New("CHAIN_REVERT", http.StatusBadGateway, "chain call reverted")

	// ErrInconsistentState marks a dual write whose on-chain phase succeeded but
	// whose off-chain phase failed. The record is repairable via reconciliation.
	ErrInconsistentState = New("INCONSISTENT_STATE", http.StatusBadGateway, "on-chain write confirmed but off-chain persist failed")

	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
