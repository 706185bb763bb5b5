package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrQuotaExceeded        = errors.New("generation quota exceeded")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotOwner             = errors.New("resource not owned by caller")
	ErrUnauthenticated      = errors.New("missing or invalid credential")
	ErrRateLimited          = errors.New("too many requests")

	// Billing / webhook errors
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid event payload")

	// Upstream errors
	ErrUpstream           = errors.New("upstream service failure")
	ErrUnrecognizedOutput = errors.New("unrecognized model output format")

	// Storage/database plumbing errors
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
