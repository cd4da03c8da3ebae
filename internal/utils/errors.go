package utils

import "errors"

var (
	ErrConfiguration         = errors.New("configuration error")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidClaims         = errors.New("invalid token claims")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("invalid token signature")
	ErrTokenMalformed        = errors.New("malformed token")
	ErrTokenTypeMismatch     = errors.New("token type mismatch")
	ErrDecryptionFailed      = errors.New("decryption failed")
)

// IsTokenError reports whether err is one of the recoverable token verification errors.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalidSignature) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenTypeMismatch)
}
