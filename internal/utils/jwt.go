package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAuth              TokenType = "auth"
	TokenRefresh           TokenType = "refresh"
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
)

const (
	VerifyTypeSchool = "school"
	VerifyTypeAdmin  = "admin"
)

var tokenTTLs = map[TokenType]time.Duration{
	TokenAuth:              8 * time.Hour,
	TokenRefresh:           7 * 24 * time.Hour,
	TokenEmailVerification: 24 * time.Hour,
	TokenPasswordReset:     time.Hour,
}

// TTLFor returns the fixed lifetime for a token type, or zero for unknown types.
func TTLFor(t TokenType) time.Duration {
	return tokenTTLs[t]
}

// Claims is the subject-scoped payload of a token. Which fields are required depends
// on the token type.
type Claims struct {
	EntityID     string `json:"entityId,omitempty"`
	Email        string `json:"email,omitempty"`
	SchoolID     string `json:"schoolId,omitempty"`
	Role         string `json:"role,omitempty"`
	CenterNumber string `json:"centerNumber,omitempty"`
	VerifyType   string `json:"verifyType,omitempty"`
}

// Token is a verified token.
type Token struct {
	Type TokenType
	Claims
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Type TokenType `json:"type"`
	Claims
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

// TokenManager issues and verifies HS256 tokens. It is immutable after construction
// and safe for concurrent use.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: token signing secret is required", ErrConfiguration)
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenManager{
		secret:   secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      now,
	}, nil
}

// Issue signs claims as a token of the given type. A non-positive ttl selects the
// type's policy lifetime.
func (m *TokenManager) Issue(tokenType TokenType, claims Claims, ttl time.Duration) (string, error) {
	if m == nil || len(m.secret) == 0 {
		return "", ErrConfiguration
	}
	if err := claims.validateFor(tokenType); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = TTLFor(tokenType)
	}
	now := m.now()
	registered := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.issuer,
		Subject:   claims.EntityID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if m.audience != "" {
		registered.Audience = jwt.ClaimStrings{m.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type:             tokenType,
		Claims:           claims,
		RegisteredClaims: registered,
	})
	return token.SignedString(m.secret)
}

// Verify checks signature, issuer, audience and expiry, then requires the token to
// carry expectedType. It performs no I/O.
func (m *TokenManager) Verify(tokenString string, expectedType TokenType) (*Token, error) {
	if m == nil || len(m.secret) == 0 {
		return nil, ErrConfiguration
	}
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenMalformed
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		options = append(options, jwt.WithAudience(m.audience))
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, options...)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrTokenTypeMismatch, expectedType, claims.Type)
	}

	verified := &Token{
		Type:   claims.Type,
		Claims: claims.Claims,
		Issuer: claims.Issuer,
	}
	if len(claims.Audience) > 0 {
		verified.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		verified.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		verified.ExpiresAt = claims.ExpiresAt.Time
	}
	return verified, nil
}

// ExtractFromHeader returns the token from an "Authorization: Bearer <token>" value.
// Absence is not an error; callers decide whether it is fatal.
func ExtractFromHeader(headerValue string) (string, bool) {
	if headerValue == "" {
		return "", false
	}
	parts := strings.SplitN(strings.TrimSpace(headerValue), " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrTokenInvalidSignature
	default:
		return ErrTokenMalformed
	}
}

func (c Claims) validateFor(tokenType TokenType) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s token requires %s", ErrInvalidClaims, tokenType, field)
	}
	switch tokenType {
	case TokenAuth:
		if c.EntityID == "" {
			return missing("entityId")
		}
		if c.Email == "" {
			return missing("email")
		}
		if c.Role == "" {
			return missing("role")
		}
	case TokenRefresh:
		if c.EntityID == "" {
			return missing("entityId")
		}
	case TokenEmailVerification:
		if c.EntityID == "" {
			return missing("entityId")
		}
		if c.Email == "" {
			return missing("email")
		}
		if c.VerifyType != VerifyTypeSchool && c.VerifyType != VerifyTypeAdmin {
			return missing("verifyType school|admin")
		}
	case TokenPasswordReset:
		if c.EntityID == "" {
			return missing("entityId")
		}
		if c.Email == "" {
			return missing("email")
		}
	default:
		return fmt.Errorf("%w: unknown token type %q", ErrInvalidClaims, tokenType)
	}
	return nil
}
