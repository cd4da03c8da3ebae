package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// HashToken digests an opaque token for storage. Only refresh sessions store digests;
// verification records keep the signed token itself so operators can revoke it by value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims surrounding whitespace only. Separators and country codes are kept
// as entered, so "555-1234" and "5551234" hash differently.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// LooksLikeEmail decides which protected field a free-form login value is matched against.
func LooksLikeEmail(login string) bool {
	return strings.Contains(login, "@")
}
