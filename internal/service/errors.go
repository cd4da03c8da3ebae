package service

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidType        = errors.New("type must be school or admin")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrOwnerNotFound      = errors.New("account not found")
	ErrMailDelivery       = errors.New("failed to deliver email")
)
