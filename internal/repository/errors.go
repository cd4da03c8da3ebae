package repository

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound    = errors.New("verification record not found")
	ErrRecordExpired     = errors.New("verification record expired")
	ErrRecordAlreadyUsed = errors.New("verification record already used")
	ErrRecordConflict    = errors.New("concurrent verification issuance")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidOwnerKind  = errors.New("invalid owner kind")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// storeError marks driver failures as retryable store errors.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
