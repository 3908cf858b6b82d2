// Package domain holds the error taxonomy and the temporal validity model shared by every
// entitlement record.
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrConflict      = errors.New("conflicting entity state")
	ErrAlreadyLinked = errors.New("player is already linked")
	ErrBanned        = errors.New("player is banned from this entitlement category")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrIntegrity     = errors.New("integrity violation")
	ErrValidation    = errors.New("validation failed")
	ErrInternal      = errors.New("internal server error")
)

// RateLimitError carries the upstream retry-after value. It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e RateLimitError) Is(target error) bool {
	return target == ErrRateLimited //nolint:errorlint
}
