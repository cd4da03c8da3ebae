package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

type FieldKind string

const (
	FieldEmail FieldKind = "email"
	FieldPhone FieldKind = "phone"
)

const (
	encryptionKeyInfo = "schoolportal/pii/encryption/v1"
	searchKeyInfo     = "schoolportal/pii/search/v1"
)

// ProtectedField is the stored form of a PII value: reversible ciphertext of the value
// as entered (surrounding whitespace removed) and a deterministic keyed hash of its
// normalized form for exact-match lookup.
type ProtectedField struct {
	Ciphertext string
	SearchHash string
}

// Protector encrypts PII and derives search hashes. Both keys are derived from one
// secret at construction and never change afterwards.
type Protector struct {
	aead      cipher.AEAD
	searchKey []byte
}

func NewProtector(secret []byte) (*Protector, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: data protection secret is required", ErrConfiguration)
	}
	encryptionKey, err := deriveKey(secret, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	searchKey, err := deriveKey(secret, searchKeyInfo)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Protector{aead: gcm, searchKey: searchKey}, nil
}

// Normalize returns the canonical form hashed for kind: email is trimmed and
// lowercased, phone is trimmed only.
func Normalize(raw string, kind FieldKind) (string, error) {
	var normalized string
	switch kind {
	case FieldEmail:
		normalized = NormalizeEmail(raw)
	case FieldPhone:
		normalized = NormalizePhone(raw)
	default:
		return "", fmt.Errorf("%w: unknown field kind %q", ErrInvalidInput, kind)
	}
	if normalized == "" {
		return "", fmt.Errorf("%w: empty %s", ErrInvalidInput, kind)
	}
	return normalized, nil
}

func (p *Protector) Protect(raw string, kind FieldKind) (ProtectedField, error) {
	if p == nil {
		return ProtectedField{}, ErrConfiguration
	}
	normalized, err := Normalize(raw, kind)
	if err != nil {
		return ProtectedField{}, err
	}

	// [12-byte nonce][ciphertext][16-byte tag], kind bound as additional data
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return ProtectedField{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := p.aead.Seal(nonce, nonce, []byte(strings.TrimSpace(raw)), []byte(kind))

	return ProtectedField{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		SearchHash: p.hash(normalized, kind),
	}, nil
}

func (p *Protector) Unprotect(ciphertext string, kind FieldKind) (string, error) {
	if p == nil {
		return "", ErrConfiguration
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecryptionFailed)
	}
	nonceSize := p.aead.NonceSize()
	if len(data) < nonceSize+p.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, sealed, []byte(kind))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}

// SearchHash is byte-identical to the SearchHash produced by Protect for the same
// normalized input.
func (p *Protector) SearchHash(raw string, kind FieldKind) (string, error) {
	if p == nil {
		return "", ErrConfiguration
	}
	normalized, err := Normalize(raw, kind)
	if err != nil {
		return "", err
	}
	return p.hash(normalized, kind), nil
}

func (p *Protector) hash(normalized string, kind FieldKind) string {
	mac := hmac.New(sha256.New, p.searchKey)
	mac.Write([]byte(kind))
	mac.Write([]byte{0})
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
