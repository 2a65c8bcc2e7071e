package models

import "errors"

var (
	// ErrAuthorizationDenied means the caller's role is below the operation's minimum.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInvalidAmount means the amount is non-numeric, fractional or not positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds means a debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound means an account id does not resolve.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTargetNotFound means a state id does not resolve to a character.
	ErrTargetNotFound = errors.New("target not found")
	// ErrInvalidRole means a role string is unknown or may not be granted this way.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidTarget means the target of an operation is the caller's own account or row.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrUnknownCaller means no character session is registered for the caller.
	ErrUnknownCaller = errors.New("unknown caller")
	// ErrConflict means the account changed underneath the operation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidRequest means the payload is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)
