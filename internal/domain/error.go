package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrValidation       = errors.New("validation failed")
	ErrVersionConflict  = errors.New("version conflict")
	ErrTooManyConflicts = errors.New("too many version conflicts")
	ErrLogMissing       = errors.New("poll event log missing")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnknownEventKind = errors.New("unknown change event kind")
	ErrLockHeld         = errors.New("lock is held by another owner")
	ErrRateLimited      = errors.New("rate limit exceeded")

	// Storage errors
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// ValidationError lists every invariant an entity failed. It never reaches a gateway.
type ValidationError struct {
	Entity string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is invalid: %s", e.Entity, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// GatewayError is returned when a call to an external service fails.
// Callers own retry and backoff.
type GatewayError struct {
	Gateway    string // "scheduler" | "routes" | "telegram"
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Gateway, e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayFailure reports whether err came from an external gateway call.
func IsGatewayFailure(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
